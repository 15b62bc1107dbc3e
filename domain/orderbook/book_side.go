package orderbook

// BookSide is one side of the book: price levels ordered best-first, each
// holding a FIFO queue. Bids iterate price descending, asks ascending.
type BookSide struct {
	side   Side
	levels *RBTree
	orders int
}

func NewBookSide(side Side) *BookSide {
	less := ascending
	if side == Buy {
		less = descending
	}
	return &BookSide{
		side:   side,
		levels: NewRBTree(less),
	}
}

func (b *BookSide) Side() Side { return b.side }

// BestPrice returns the best price, or false when the side is empty.
func (b *BookSide) BestPrice() (int64, bool) {
	lvl := b.levels.First()
	if lvl == nil {
		return NoPrice, false
	}
	return lvl.Price, true
}

// BestLevel returns the best level, or nil when the side is empty.
func (b *BookSide) BestLevel() *PriceLevel {
	return b.levels.First()
}

// AppendOrder queues o behind every order already resting at price.
func (b *BookSide) AppendOrder(price int64, o *Order) {
	b.levels.UpsertLevel(price).Enqueue(o)
	b.orders++
}

// RemoveOrder removes the order with the given id from the level at price.
// It returns false when no such order rests at that price.
func (b *BookSide) RemoveOrder(price int64, id uint64) bool {
	lvl := b.levels.FindLevel(price)
	if lvl == nil {
		return false
	}
	o := lvl.find(id)
	if o == nil {
		return false
	}
	b.unlink(lvl, o)
	return true
}

// Detach removes o from its level through the order's own links.
func (b *BookSide) Detach(o *Order) bool {
	lvl := o.level
	if lvl == nil || o.Side != b.side {
		return false
	}
	if b.levels.FindLevel(lvl.Price) != lvl {
		return false
	}
	b.unlink(lvl, o)
	return true
}

// PopFrontOfBest removes and returns the head of the best level.
func (b *BookSide) PopFrontOfBest() *Order {
	lvl := b.levels.First()
	if lvl == nil {
		return nil
	}
	o := lvl.PopHead()
	b.settle(lvl)
	return o
}

func (b *BookSide) unlink(lvl *PriceLevel, o *Order) {
	lvl.unlink(o)
	b.settle(lvl)
}

// settle accounts for one order leaving lvl and erases lvl once empty.
func (b *BookSide) settle(lvl *PriceLevel) {
	b.orders--
	if lvl.Empty() {
		b.levels.DeleteLevel(lvl.Price)
	}
}

// Walk visits levels best-first until fn returns false.
func (b *BookSide) Walk(fn func(*PriceLevel) bool) {
	b.levels.ForEach(fn)
}

// Levels is the number of distinct prices on this side.
func (b *BookSide) Levels() int { return b.levels.Size() }

// Len is the number of resting orders on this side.
func (b *BookSide) Len() int { return b.orders }

func (b *BookSide) Empty() bool { return b.levels.Size() == 0 }
