package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restingOrder(id uint64, side Side, price, qty int64) *Order {
	return &Order{ID: id, Side: side, Type: Limit, Price: price, Qty: qty, Status: Resting}
}

func TestBookSide_BidsBestIsHighest(t *testing.T) {
	b := NewBookSide(Buy)
	_, ok := b.BestPrice()
	assert.False(t, ok)
	assert.Nil(t, b.BestLevel())

	b.AppendOrder(9990, restingOrder(1, Buy, 9990, 10))
	b.AppendOrder(10000, restingOrder(2, Buy, 10000, 10))
	b.AppendOrder(9980, restingOrder(3, Buy, 9980, 10))

	best, ok := b.BestPrice()
	require.True(t, ok)
	assert.Equal(t, int64(10000), best)
	assert.Equal(t, 3, b.Levels())
	assert.Equal(t, 3, b.Len())
}

func TestBookSide_AsksBestIsLowest(t *testing.T) {
	b := NewBookSide(Sell)
	b.AppendOrder(10020, restingOrder(1, Sell, 10020, 10))
	b.AppendOrder(10010, restingOrder(2, Sell, 10010, 10))

	best, ok := b.BestPrice()
	require.True(t, ok)
	assert.Equal(t, int64(10010), best)

	var prices []int64
	b.Walk(func(lvl *PriceLevel) bool {
		prices = append(prices, lvl.Price)
		return true
	})
	assert.Equal(t, []int64{10010, 10020}, prices)
}

func TestBookSide_FIFOWithinLevel(t *testing.T) {
	b := NewBookSide(Sell)
	for id := uint64(1); id <= 3; id++ {
		b.AppendOrder(100, restingOrder(id, Sell, 100, 5))
	}

	lvl := b.BestLevel()
	require.NotNil(t, lvl)
	assert.Equal(t, int64(15), lvl.TotalQty)
	assert.Equal(t, 3, lvl.OrderCount)

	for want := uint64(1); want <= 3; want++ {
		o := b.PopFrontOfBest()
		require.NotNil(t, o)
		assert.Equal(t, want, o.ID)
		assert.Nil(t, o.level)
		assert.Equal(t, int(3-want), b.Len())
		if want < 3 {
			assert.Equal(t, int64(5*(3-want)), lvl.TotalQty)
			assert.Equal(t, int(3-want), lvl.OrderCount)
		}
	}
	assert.Nil(t, b.PopFrontOfBest())
	assert.True(t, b.Empty(), "empty level must be erased")
}

func TestBookSide_RemoveOrderErasesEmptyLevel(t *testing.T) {
	b := NewBookSide(Buy)
	b.AppendOrder(100, restingOrder(1, Buy, 100, 5))
	b.AppendOrder(100, restingOrder(2, Buy, 100, 7))
	b.AppendOrder(99, restingOrder(3, Buy, 99, 1))

	assert.False(t, b.RemoveOrder(100, 3), "order 3 rests at 99, not 100")
	assert.False(t, b.RemoveOrder(101, 1), "no level at 101")

	assert.True(t, b.RemoveOrder(100, 1))
	lvl := b.BestLevel()
	require.NotNil(t, lvl)
	assert.Equal(t, int64(7), lvl.TotalQty)
	assert.Equal(t, uint64(2), lvl.Head().ID)

	assert.True(t, b.RemoveOrder(100, 2))
	best, ok := b.BestPrice()
	require.True(t, ok)
	assert.Equal(t, int64(99), best)
	assert.Equal(t, 1, b.Levels())
	assert.False(t, b.RemoveOrder(100, 2), "second removal is a no-op")
}

func TestBookSide_DetachMiddleOfQueue(t *testing.T) {
	b := NewBookSide(Sell)
	o1 := restingOrder(1, Sell, 100, 1)
	o2 := restingOrder(2, Sell, 100, 2)
	o3 := restingOrder(3, Sell, 100, 3)
	b.AppendOrder(100, o1)
	b.AppendOrder(100, o2)
	b.AppendOrder(100, o3)

	require.True(t, b.Detach(o2))
	assert.False(t, b.Detach(o2), "already detached")

	lvl := b.BestLevel()
	assert.Equal(t, int64(4), lvl.TotalQty)
	assert.Equal(t, 2, lvl.OrderCount)
	assert.Same(t, o3, lvl.Head().Next())
	assert.Equal(t, 2, b.Len())
}

func TestBookSide_DetachWrongSide(t *testing.T) {
	bids := NewBookSide(Buy)
	asks := NewBookSide(Sell)
	o := restingOrder(1, Buy, 100, 1)
	bids.AppendOrder(100, o)

	assert.False(t, asks.Detach(o))
	assert.Equal(t, 1, bids.Len())
}
