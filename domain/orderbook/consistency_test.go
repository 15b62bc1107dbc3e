package orderbook

import "fmt"

// checkConsistency verifies every structural invariant of an engine at rest.
func checkConsistency(e *Engine) error {
	indexed := 0
	var liveQty int64

	for _, side := range []*BookSide{e.bids, e.asks} {
		orders := 0
		var err error
		side.Walk(func(lvl *PriceLevel) bool {
			if lvl.Empty() {
				err = fmt.Errorf("%s level %d is empty", side.Side(), lvl.Price)
				return false
			}
			var sum int64
			count := 0
			var prevID uint64
			for o := lvl.Head(); o != nil; o = o.Next() {
				switch {
				case o.level != lvl:
					err = fmt.Errorf("order %d points at another level", o.ID)
				case o.Price != lvl.Price || o.Side != side.Side():
					err = fmt.Errorf("order %d (%s %d) queued at %s %d", o.ID, o.Side, o.Price, side.Side(), lvl.Price)
				case o.Remaining() <= 0:
					err = fmt.Errorf("order %d rests with remaining %d", o.ID, o.Remaining())
				case o.Status != Resting:
					err = fmt.Errorf("order %d rests with status %s", o.ID, o.Status)
				case o.ID <= prevID:
					err = fmt.Errorf("level %d breaks time priority: %d after %d", lvl.Price, o.ID, prevID)
				}
				if err != nil {
					return false
				}
				if stored, gerr := e.store.Get(o.ID); gerr != nil || stored != o {
					err = fmt.Errorf("order %d resting but not indexed", o.ID)
					return false
				}
				prevID = o.ID
				sum += o.Remaining()
				count++
			}
			if sum != lvl.TotalQty || count != lvl.OrderCount {
				err = fmt.Errorf("level %d aggregates qty=%d count=%d, actual qty=%d count=%d",
					lvl.Price, lvl.TotalQty, lvl.OrderCount, sum, count)
				return false
			}
			orders += count
			liveQty += sum
			return true
		})
		if err != nil {
			return err
		}
		if orders != side.Len() {
			return fmt.Errorf("%s side counts %d orders, walked %d", side.Side(), side.Len(), orders)
		}
		indexed += orders
	}

	if indexed != e.store.Len() {
		return fmt.Errorf("store holds %d orders, books hold %d", e.store.Len(), indexed)
	}
	if live := e.pool.Live(); live != int64(indexed) {
		return fmt.Errorf("pool has %d orders outstanding, %d live", live, indexed)
	}

	q := e.Query()
	bid, okBid := q.BestBid()
	ask, okAsk := q.BestAsk()
	if okBid && okAsk && bid >= ask {
		return fmt.Errorf("book crossed: bid %d >= ask %d", bid, ask)
	}

	s := e.Stats()
	if s.SubmittedQty != liveQty+2*s.TradedQty+s.CancelledQty+s.ExpiredQty {
		return fmt.Errorf("quantity not conserved: submitted=%d live=%d traded=%d cancelled=%d expired=%d",
			s.SubmittedQty, liveQty, s.TradedQty, s.CancelledQty, s.ExpiredQty)
	}
	return nil
}
