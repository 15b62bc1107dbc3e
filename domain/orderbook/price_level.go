package orderbook

// PriceLevel is a FIFO queue of resting orders at a single price.
// TotalQty is the sum of the remaining quantity of every queued order.
type PriceLevel struct {
	Price int64

	head *Order
	tail *Order

	TotalQty   int64
	OrderCount int
}

// Enqueue appends o at the back of the queue. Arrival order is time priority.
func (p *PriceLevel) Enqueue(o *Order) {
	o.level = p
	o.next = nil
	if p.head == nil {
		o.prev = nil
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.TotalQty += o.Remaining()
	p.OrderCount++
}

// PopHead dequeues the order with time priority, or returns nil.
func (p *PriceLevel) PopHead() *Order {
	o := p.head
	if o == nil {
		return nil
	}
	p.unlink(o)
	return o
}

// unlink removes o from anywhere in the queue in O(1).
func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}

	p.TotalQty -= o.Remaining()
	p.OrderCount--

	o.next = nil
	o.prev = nil
	o.level = nil
}

// find returns the queued order with the given id, or nil.
func (p *PriceLevel) find(id uint64) *Order {
	for o := p.head; o != nil; o = o.next {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (p *PriceLevel) Empty() bool {
	return p.head == nil
}

// Head is the order with time priority at this price.
func (p *PriceLevel) Head() *Order {
	return p.head
}
