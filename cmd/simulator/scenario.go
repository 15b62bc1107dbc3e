package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"matchbook/domain/orderbook"
	"matchbook/domain/tick"
	"matchbook/service"
)

type placement struct {
	side  orderbook.Side
	typ   orderbook.OrderType
	price string
	qty   int64
}

// runner drives a service with decimal prices.
type runner struct {
	svc   *service.OrderService
	scale tick.Scale
	out   printer
	depth int
	// trades is how many recent trades to print after a fill.
	trades int
}

func (r runner) place(ctx context.Context, orders ...placement) error {
	for _, o := range orders {
		var price int64
		if o.typ == orderbook.Limit {
			p, err := r.scale.Parse(o.price)
			if err != nil {
				return err
			}
			price = p
		}
		if _, err := r.svc.PlaceOrder(ctx, o.side, o.typ, price, o.qty); err != nil {
			return fmt.Errorf("%s %s %s x %d: %w", o.side, o.typ, o.price, o.qty, err)
		}
	}
	return nil
}

func (r runner) show(trades int) {
	snap := r.svc.Snapshot(r.depth, trades)
	r.out.Book(snap)
	if trades > 0 {
		r.out.Trades(snap.Trades)
	}
}

// Demo builds a five level book, then takes liquidity with a market order
// and an aggressive limit order, then adds passive orders.
func (r runner) Demo(ctx context.Context) error {
	w := r.out.w
	fmt.Fprintln(w, "Building initial order book...")
	err := r.place(ctx,
		placement{orderbook.Sell, orderbook.Limit, "100.50", 100},
		placement{orderbook.Sell, orderbook.Limit, "100.60", 150},
		placement{orderbook.Sell, orderbook.Limit, "100.70", 200},
		placement{orderbook.Sell, orderbook.Limit, "100.80", 175},
		placement{orderbook.Sell, orderbook.Limit, "100.90", 125},
		placement{orderbook.Buy, orderbook.Limit, "100.40", 120},
		placement{orderbook.Buy, orderbook.Limit, "100.30", 180},
		placement{orderbook.Buy, orderbook.Limit, "100.20", 150},
		placement{orderbook.Buy, orderbook.Limit, "100.10", 200},
		placement{orderbook.Buy, orderbook.Limit, "100.00", 100},
	)
	if err != nil {
		return err
	}
	r.show(0)

	fmt.Fprintln(w, "\n>>> Executing MARKET BUY order for 250 shares <<<")
	if err := r.place(ctx, placement{orderbook.Buy, orderbook.Market, "", 250}); err != nil {
		return err
	}
	r.show(r.trades)

	fmt.Fprintln(w, "\n>>> Adding LIMIT BUY at 100.65 for 180 shares (crosses spread) <<<")
	if err := r.place(ctx, placement{orderbook.Buy, orderbook.Limit, "100.65", 180}); err != nil {
		return err
	}
	r.show(r.trades)

	fmt.Fprintln(w, "\n>>> Adding passive LIMIT orders <<<")
	err = r.place(ctx,
		placement{orderbook.Buy, orderbook.Limit, "100.35", 100},
		placement{orderbook.Sell, orderbook.Limit, "100.95", 150},
	)
	if err != nil {
		return err
	}
	r.show(0)
	return nil
}

// Throughput submits n random limit orders: uniform prices in [99, 101)
// rounded to the tick, quantities in [10, 500].
func (r runner) Throughput(ctx context.Context, n int, seed int64) (time.Duration, error) {
	rng := rand.New(rand.NewSource(seed))
	lo, span := decimal.NewFromInt(99), decimal.NewFromInt(2)

	start := time.Now()
	for i := 0; i < n; i++ {
		side := orderbook.Buy
		if rng.Intn(2) == 1 {
			side = orderbook.Sell
		}
		price := r.scale.Round(lo.Add(span.Mul(decimal.NewFromFloat(rng.Float64()))))
		qty := int64(10 + rng.Intn(491))
		if _, err := r.svc.PlaceOrder(ctx, side, orderbook.Limit, price, qty); err != nil {
			return time.Since(start), err
		}
	}
	return time.Since(start), nil
}
