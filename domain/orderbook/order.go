package orderbook

import (
	"fmt"
	"strings"
)

type Side uint8
type OrderType uint8
type Status uint8

const (
	Buy Side = iota
	Sell
)

const (
	Limit OrderType = iota
	Market
)

// Order lifecycle: Received -> Matching -> (Resting | Filled | Expired).
// A Resting order later becomes Filled or Cancelled.
const (
	Received Status = iota
	Matching
	Resting
	Filled
	Cancelled
	Expired
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSide accepts BUY/SELL in any case, and BID/ASK as aliases.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY", "BID":
		return Buy, nil
	case "SELL", "ASK":
		return Sell, nil
	}
	return 0, fmt.Errorf("side %q: %w", s, ErrInvalidOrder)
}

func (s Side) MarshalText() ([]byte, error) {
	if s != Buy && s != Sell {
		return nil, fmt.Errorf("side %d: %w", s, ErrInvalidOrder)
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Opposite returns the side an order of this side trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(s) {
	case "LIMIT":
		return Limit, nil
	case "MARKET":
		return Market, nil
	}
	return 0, fmt.Errorf("order type %q: %w", s, ErrInvalidOrder)
}

func (s Status) String() string {
	switch s {
	case Received:
		return "RECEIVED"
	case Matching:
		return "MATCHING"
	case Resting:
		return "RESTING"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Expired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Order is a pure domain entity. Price is expressed in integer ticks and is
// zero for market orders.
type Order struct {
	ID     uint64
	Price  int64
	Qty    int64
	Filled int64

	Side   Side
	Type   OrderType
	Status Status

	level *PriceLevel
	next  *Order
	prev  *Order
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// Next walks the level queue towards newer orders.
func (o *Order) Next() *Order {
	return o.next
}

// fill consumes qty from the order and from the aggregate of the level it
// rests on, if any.
func (o *Order) fill(qty int64) {
	o.Filled += qty
	if o.level != nil {
		o.level.TotalQty -= qty
	}
}

// reset clears an order before it goes back to the pool.
func (o *Order) reset() {
	*o = Order{}
}
