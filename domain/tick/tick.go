// Package tick converts between decimal prices and the integer ticks the
// order book keys its levels by.
package tick

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSize = errors.New("tick: size must be positive")
	ErrOffGrid     = errors.New("tick: price is not a multiple of the tick size")
)

// Scale maps decimal prices onto a fixed tick grid.
type Scale struct {
	size decimal.Decimal
}

func NewScale(size decimal.Decimal) (Scale, error) {
	if !size.IsPositive() {
		return Scale{}, fmt.Errorf("%s: %w", size, ErrInvalidSize)
	}
	return Scale{size: size}, nil
}

// MustScale is NewScale for constant sizes such as "0.01".
func MustScale(size string) Scale {
	s, err := NewScale(decimal.RequireFromString(size))
	if err != nil {
		panic(err)
	}
	return s
}

func (s Scale) Size() decimal.Decimal { return s.size }

// ToTicks converts an exact multiple of the tick size.
func (s Scale) ToTicks(price decimal.Decimal) (int64, error) {
	q, r := price.QuoRem(s.size, 0)
	if !r.IsZero() {
		return 0, fmt.Errorf("%s at tick %s: %w", price, s.size, ErrOffGrid)
	}
	return q.IntPart(), nil
}

// Round converts to the nearest tick, half away from zero.
func (s Scale) Round(price decimal.Decimal) int64 {
	return price.Div(s.size).Round(0).IntPart()
}

// Parse reads a decimal string and converts it with ToTicks.
func (s Scale) Parse(price string) (int64, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return 0, fmt.Errorf("tick: parse %q: %w", price, err)
	}
	return s.ToTicks(d)
}

func (s Scale) FromTicks(ticks int64) decimal.Decimal {
	return decimal.NewFromInt(ticks).Mul(s.size)
}

// FromTicksDecimal scales a fractional tick count such as a mid price.
func (s Scale) FromTicksDecimal(ticks decimal.Decimal) decimal.Decimal {
	return ticks.Mul(s.size)
}

// Format renders ticks with as many decimals as the tick size carries.
func (s Scale) Format(ticks int64) string {
	return s.FromTicks(ticks).StringFixed(s.places())
}

func (s Scale) places() int32 {
	if e := s.size.Exponent(); e < 0 {
		return -e
	}
	return 0
}
