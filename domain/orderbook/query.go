package orderbook

import "github.com/shopspring/decimal"

// NoPrice is returned alongside ok == false when a side is empty.
const NoPrice int64 = 0

// DepthLevel aggregates one price level.
type DepthLevel struct {
	Price    int64
	Quantity int64
	Orders   int
}

// BookQuery is a read-only view of both sides of a book. It never mutates
// and must only be used between engine operations.
type BookQuery struct {
	bids *BookSide
	asks *BookSide
}

func (q BookQuery) BestBid() (int64, bool) {
	return q.bids.BestPrice()
}

func (q BookQuery) BestAsk() (int64, bool) {
	return q.asks.BestPrice()
}

// MidPrice is the exact average of best bid and best ask, in ticks.
func (q BookQuery) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := q.BestBid()
	ask, okAsk := q.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(bid).Add(decimal.NewFromInt(ask)).Div(decimal.NewFromInt(2)), true
}

// Spread is best ask minus best bid, in ticks.
func (q BookQuery) Spread() (int64, bool) {
	bid, okBid := q.BestBid()
	ask, okAsk := q.BestAsk()
	if !okBid || !okAsk {
		return NoPrice, false
	}
	return ask - bid, true
}

// Depth aggregates the best levels of one side, best first. Buy selects the
// bid side and Sell the ask side.
func (q BookQuery) Depth(levels int, side Side) []DepthLevel {
	if levels <= 0 {
		return []DepthLevel{}
	}
	book := q.bids
	if side == Sell {
		book = q.asks
	}
	// levels may be huge to mean "all of them".
	out := make([]DepthLevel, 0, min(levels, book.Levels()))
	book.Walk(func(lvl *PriceLevel) bool {
		out = append(out, DepthLevel{
			Price:    lvl.Price,
			Quantity: lvl.TotalQty,
			Orders:   lvl.OrderCount,
		})
		return len(out) < levels
	})
	return out
}
