package orderbook

import (
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// naiveBook is a slow reference matcher: a flat slice scanned on every fill.
type naiveBook struct {
	nextID  uint64
	resting []naiveOrder
	trades  []Trade
}

type naiveOrder struct {
	id        uint64
	side      Side
	price     int64
	remaining int64
}

func (b *naiveBook) submit(side Side, typ OrderType, price, qty int64) uint64 {
	b.nextID++
	id := b.nextID
	for qty > 0 {
		best := -1
		for i, r := range b.resting {
			if r.side == side {
				continue
			}
			if typ == Limit && ((side == Buy && r.price > price) || (side == Sell && r.price < price)) {
				continue
			}
			if best < 0 || b.better(r, b.resting[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		m := &b.resting[best]
		fill := min(qty, m.remaining)
		t := Trade{Price: m.price, Qty: fill}
		if side == Buy {
			t.BuyOrderID, t.SellOrderID = id, m.id
		} else {
			t.BuyOrderID, t.SellOrderID = m.id, id
		}
		b.trades = append(b.trades, t)
		qty -= fill
		m.remaining -= fill
		if m.remaining == 0 {
			b.resting = append(b.resting[:best], b.resting[best+1:]...)
		}
	}
	if qty > 0 && typ == Limit {
		b.resting = append(b.resting, naiveOrder{id: id, side: side, price: price, remaining: qty})
	}
	return id
}

func (b *naiveBook) better(a, c naiveOrder) bool {
	if a.price != c.price {
		if a.side == Buy {
			return a.price > c.price
		}
		return a.price < c.price
	}
	return a.id < c.id
}

func (b *naiveBook) cancel(id uint64) bool {
	for i, r := range b.resting {
		if r.id == id {
			b.resting = append(b.resting[:i], b.resting[i+1:]...)
			return true
		}
	}
	return false
}

func (b *naiveBook) depth(side Side) []DepthLevel {
	byPrice := map[int64]*DepthLevel{}
	for _, r := range b.resting {
		if r.side != side {
			continue
		}
		lvl, ok := byPrice[r.price]
		if !ok {
			lvl = &DepthLevel{Price: r.price}
			byPrice[r.price] = lvl
		}
		lvl.Quantity += r.remaining
		lvl.Orders++
	}
	out := make([]DepthLevel, 0, len(byPrice))
	for _, lvl := range byPrice {
		out = append(out, *lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if side == Buy {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func TestEngine_MatchesReferenceModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEngine()
		ref := &naiveBook{}
		var ids []uint64

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(ids) > 0 && rapid.IntRange(0, 4).Draw(t, "op") == 0 {
				id := rapid.SampledFrom(ids).Draw(t, "cancelID")
				got, want := e.Cancel(id), ref.cancel(id)
				if got != want {
					t.Fatalf("cancel %d: engine %v, reference %v", id, got, want)
				}
				continue
			}

			side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
			typ := Limit
			if rapid.IntRange(0, 9).Draw(t, "market") == 0 {
				typ = Market
			}
			price := rapid.Int64Range(95, 105).Draw(t, "price")
			qty := rapid.Int64Range(1, 50).Draw(t, "qty")

			id, err := e.Submit(side, typ, price, qty)
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if want := ref.submit(side, typ, price, qty); id != want {
				t.Fatalf("engine assigned id %d, reference %d", id, want)
			}
			ids = append(ids, id)

			if err := checkConsistency(e); err != nil {
				t.Fatalf("after submit %d: %v", id, err)
			}
		}

		trades := e.RecentTrades(len(ref.trades) + 1)
		if len(trades) != len(ref.trades) {
			t.Fatalf("engine produced %d trades, reference %d", len(trades), len(ref.trades))
		}
		for i, tr := range trades {
			want := ref.trades[i]
			if tr.BuyOrderID != want.BuyOrderID || tr.SellOrderID != want.SellOrderID ||
				tr.Price != want.Price || tr.Qty != want.Qty {
				t.Fatalf("trade %d: engine %+v, reference %+v", i, tr, want)
			}
			if tr.Seq != uint64(i+1) {
				t.Fatalf("trade %d has seq %d", i, tr.Seq)
			}
		}

		for _, side := range []Side{Buy, Sell} {
			got := e.Query().Depth(1000, side)
			want := ref.depth(side)
			if len(got) != len(want) {
				t.Fatalf("%s depth: engine %v, reference %v", side, got, want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("%s depth level %d: engine %v, reference %v", side, i, got[i], want[i])
				}
			}
		}
		if err := checkConsistency(e); err != nil {
			t.Fatal(err)
		}
	})
}

func TestEngine_RejectionsNeverMutate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEngine()
		for i := 0; i < 5; i++ {
			side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
			if _, err := e.Submit(side, Limit, rapid.Int64Range(90, 110).Draw(t, "price"), 10); err != nil {
				t.Fatal(err)
			}
		}
		before := e.Stats()
		bids, asks := e.Query().Depth(100, Buy), e.Query().Depth(100, Sell)

		qty := rapid.Int64Range(-100, 0).Draw(t, "badQty")
		if _, err := e.Submit(Buy, Limit, 100, qty); err == nil {
			t.Fatalf("quantity %d accepted", qty)
		}
		price := rapid.Int64Range(-100, 0).Draw(t, "badPrice")
		if _, err := e.Submit(Sell, Limit, price, 10); err == nil {
			t.Fatalf("price %d accepted", price)
		}

		if after := e.Stats(); after != before {
			t.Fatalf("stats changed: %+v -> %+v", before, after)
		}
		if got := e.Query().Depth(100, Buy); len(got) != len(bids) {
			t.Fatalf("bid depth changed")
		}
		if got := e.Query().Depth(100, Sell); len(got) != len(asks) {
			t.Fatalf("ask depth changed")
		}
	})
}
