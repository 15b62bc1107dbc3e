package orderbook

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"matchbook/infra/memory"
	"matchbook/infra/sequence"
)

// Config carries the engine's collaborators. Zero values are valid.
type Config struct {
	Logger *zap.Logger
	// Now stamps trades; defaults to time.Now.
	Now func() time.Time
	// TradeSeqStart is the sequence the trade tape continues from, so that
	// trades of a restarted engine never reuse an earlier run's numbers.
	TradeSeqStart uint64
}

// Stats summarises everything the engine has processed.
//
// Every traded unit leaves one buy and one sell order, so
// SubmittedQty == live remaining + 2*TradedQty + CancelledQty + ExpiredQty.
type Stats struct {
	OrdersProcessed uint64
	Trades          uint64
	LiveOrders      int
	BidLevels       int
	AskLevels       int

	SubmittedQty int64
	TradedQty    int64
	CancelledQty int64
	ExpiredQty   int64
}

// Engine matches orders for one instrument with price-time priority.
//
// Engine is single-writer and deterministic: it is not safe for concurrent
// use. service.OrderService serialises access for concurrent callers.
type Engine struct {
	bids  *BookSide
	asks  *BookSide
	store *OrderStore
	tape  *TradeTape

	ids  *sequence.Sequencer
	pool *memory.Pool[Order]

	log *zap.Logger
	now func() time.Time

	stats Stats
}

func NewEngine(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		bids:  NewBookSide(Buy),
		asks:  NewBookSide(Sell),
		store: NewOrderStore(),
		tape:  NewTradeTape(cfg.TradeSeqStart),
		ids:   sequence.New(0),
		pool:  memory.NewPool(func() *Order { return &Order{} }, (*Order).reset),
		log:   log.Named("engine"),
		now:   now,
	}
}

// Submit validates, matches and, for a limit order, rests the remainder.
// It returns the id allocated to the order. A rejected order changes nothing.
func (e *Engine) Submit(side Side, typ OrderType, price, qty int64) (uint64, error) {
	if (side != Buy && side != Sell) || (typ != Limit && typ != Market) {
		return 0, fmt.Errorf("side %d type %d: %w", side, typ, ErrInvalidOrder)
	}
	if qty <= 0 {
		return 0, fmt.Errorf("quantity %d: %w", qty, ErrInvalidQuantity)
	}
	if typ == Limit && price <= 0 {
		return 0, fmt.Errorf("limit price %d: %w", price, ErrInvalidPrice)
	}
	if typ == Market {
		price = 0
	}

	o := e.pool.Get()
	*o = Order{
		ID:     e.ids.Next(),
		Side:   side,
		Type:   typ,
		Price:  price,
		Qty:    qty,
		Status: Received,
	}
	id := o.ID
	e.stats.OrdersProcessed++
	e.stats.SubmittedQty += qty

	o.Status = Matching
	e.match(o)

	switch {
	case o.Remaining() == 0:
		o.Status = Filled
		e.pool.Put(o)
	case o.Type == Limit:
		e.rest(o)
	default:
		// Market orders have no price to rest at.
		e.stats.ExpiredQty += o.Remaining()
		o.Status = Expired
		if ce := e.log.Check(zap.DebugLevel, "market remainder discarded"); ce != nil {
			ce.Write(zap.Uint64("order_id", id), zap.Int64("qty", o.Remaining()))
		}
		e.pool.Put(o)
	}
	return id, nil
}

// Cancel removes a resting order. Unknown, filled and already cancelled ids
// are a no-op and return false.
func (e *Engine) Cancel(id uint64) bool {
	o, err := e.store.Get(id)
	if err != nil {
		return false
	}
	if !e.sideBook(o.Side).Detach(o) {
		panic(fmt.Sprintf("orderbook: order %d indexed but not resting", id))
	}
	if _, err := e.store.Remove(id); err != nil {
		panic(err)
	}

	e.stats.CancelledQty += o.Remaining()
	o.Status = Cancelled
	if ce := e.log.Check(zap.DebugLevel, "order cancelled"); ce != nil {
		ce.Write(zap.Uint64("order_id", id), zap.Int64("remaining", o.Remaining()))
	}
	e.pool.Put(o)
	return true
}

// Order returns a copy of a live order.
func (e *Engine) Order(id uint64) (Order, bool) {
	o, err := e.store.Get(id)
	if err != nil {
		return Order{}, false
	}
	c := *o
	c.level, c.next, c.prev = nil, nil, nil
	return c, true
}

// Query returns a read-only view over both sides of the book.
func (e *Engine) Query() BookQuery {
	return BookQuery{bids: e.bids, asks: e.asks}
}

// RecentTrades returns up to n of the latest trades, most recent last.
func (e *Engine) RecentTrades(n int) []Trade {
	return e.tape.Recent(n)
}

// TradesSince returns the trades executed after sequence seq.
func (e *Engine) TradesSince(seq uint64) []Trade {
	return e.tape.Since(seq)
}

// LastTradeSeq is the sequence of the latest trade, Config.TradeSeqStart
// before the first.
func (e *Engine) LastTradeSeq() uint64 {
	return e.tape.LastSeq()
}

func (e *Engine) Stats() Stats {
	s := e.stats
	s.Trades = uint64(e.tape.Count())
	s.LiveOrders = e.store.Len()
	s.BidLevels = e.bids.Levels()
	s.AskLevels = e.asks.Levels()
	return s
}

// ---- matching ----

func (e *Engine) match(o *Order) {
	opposite := e.sideBook(o.Side.Opposite())

	for o.Remaining() > 0 {
		lvl := opposite.BestLevel()
		if lvl == nil || !crosses(o, lvl.Price) {
			return
		}

		for o.Remaining() > 0 && !lvl.Empty() {
			maker := lvl.Head()
			qty := min(o.Remaining(), maker.Remaining())

			o.fill(qty)
			maker.fill(qty)
			e.record(o, maker, lvl.Price, qty)

			if maker.Remaining() == 0 {
				opposite.PopFrontOfBest()
				if _, err := e.store.Remove(maker.ID); err != nil {
					panic(err)
				}
				maker.Status = Filled
				e.pool.Put(maker)
			}
		}
	}
}

// crosses reports whether o may trade against a level at price.
func crosses(o *Order, price int64) bool {
	switch {
	case o.Type == Market:
		return true
	case o.Side == Buy:
		return price <= o.Price
	default:
		return price >= o.Price
	}
}

func (e *Engine) record(taker, maker *Order, price, qty int64) {
	t := Trade{
		MakerOrderID: maker.ID,
		TakerOrderID: taker.ID,
		Aggressor:    taker.Side,
		Price:        price,
		Qty:          qty,
		Time:         e.now(),
	}
	if taker.Side == Buy {
		t.BuyOrderID, t.SellOrderID = taker.ID, maker.ID
	} else {
		t.BuyOrderID, t.SellOrderID = maker.ID, taker.ID
	}
	t = e.tape.Append(t)
	e.stats.TradedQty += qty

	if ce := e.log.Check(zap.DebugLevel, "trade"); ce != nil {
		ce.Write(
			zap.Uint64("seq", t.Seq),
			zap.Uint64("buy_id", t.BuyOrderID),
			zap.Uint64("sell_id", t.SellOrderID),
			zap.Int64("price", t.Price),
			zap.Int64("qty", t.Qty),
		)
	}
}

func (e *Engine) rest(o *Order) {
	if err := e.store.Insert(o); err != nil {
		panic(err)
	}
	e.sideBook(o.Side).AppendOrder(o.Price, o)
	o.Status = Resting

	if ce := e.log.Check(zap.DebugLevel, "order resting"); ce != nil {
		ce.Write(
			zap.Uint64("order_id", o.ID),
			zap.Stringer("side", o.Side),
			zap.Int64("price", o.Price),
			zap.Int64("remaining", o.Remaining()),
		)
	}
}

func (e *Engine) sideBook(s Side) *BookSide {
	if s == Buy {
		return e.bids
	}
	return e.asks
}
