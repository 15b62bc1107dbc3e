package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"matchbook/domain/orderbook"
	"matchbook/domain/tick"
	"matchbook/service"
)

// printer renders service snapshots as plain-text tables.
type printer struct {
	w     io.Writer
	scale tick.Scale
}

func (p printer) price(ticks int64) string {
	return p.scale.Format(ticks)
}

func (p printer) levels(tw *tabwriter.Writer, lvls []orderbook.DepthLevel) {
	fmt.Fprintln(tw, "Price\tQuantity\tOrders\t")
	fmt.Fprintln(tw, "-----\t--------\t------\t")
	for _, l := range lvls {
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", p.price(l.Price), l.Quantity, l.Orders)
	}
}

// Book prints asks worst-to-best above the spread line and bids best-first
// below it, so the best prices meet in the middle.
func (p printer) Book(snap service.Snapshot) {
	asks := make([]orderbook.DepthLevel, len(snap.Asks))
	for i, l := range snap.Asks {
		asks[len(asks)-1-i] = l
	}

	fmt.Fprintln(p.w, "\n=== Order Book ===")
	fmt.Fprintln(p.w, "\n--- ASKS (Sell) ---")
	tw := tabwriter.NewWriter(p.w, 12, 0, 3, ' ', tabwriter.AlignRight)
	p.levels(tw, asks)
	tw.Flush()

	line := strings.Repeat("=", 42)
	fmt.Fprintln(p.w, "\n"+line)
	if snap.HasMid {
		fmt.Fprintf(p.w, "Spread: %s | Mid: %s\n",
			p.price(snap.Spread), p.scale.FromTicksDecimal(snap.Mid).StringFixed(3))
	} else {
		fmt.Fprintln(p.w, "Spread: - | Mid: -")
	}
	fmt.Fprintln(p.w, line+"\n")

	fmt.Fprintln(p.w, "--- BIDS (Buy) ---")
	tw = tabwriter.NewWriter(p.w, 12, 0, 3, ' ', tabwriter.AlignRight)
	p.levels(tw, snap.Bids)
	tw.Flush()
	fmt.Fprintln(p.w)
}

func (p printer) Trades(trades []orderbook.Trade) {
	fmt.Fprintln(p.w, "=== Recent Trades ===")
	tw := tabwriter.NewWriter(p.w, 10, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Seq\tBuy ID\tSell ID\tAggressor\tPrice\tQuantity\t")
	for _, t := range trades {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%d\t\n",
			t.Seq, t.BuyOrderID, t.SellOrderID, t.Aggressor, p.price(t.Price), t.Qty)
	}
	tw.Flush()
	fmt.Fprintln(p.w)
}

func (p printer) Stats(snap service.Snapshot) {
	s := snap.Stats
	fmt.Fprintln(p.w, "=== Order Book Statistics ===")
	fmt.Fprintf(p.w, "Total orders processed: %d\n", s.OrdersProcessed)
	fmt.Fprintf(p.w, "Total trades executed: %d\n", s.Trades)
	fmt.Fprintf(p.w, "Live orders: %d (%d bid levels, %d ask levels)\n", s.LiveOrders, s.BidLevels, s.AskLevels)
	fmt.Fprintf(p.w, "Quantity submitted/traded/cancelled/expired: %d/%d/%d/%d\n",
		s.SubmittedQty, s.TradedQty, s.CancelledQty, s.ExpiredQty)
	if len(snap.Bids) > 0 {
		fmt.Fprintf(p.w, "Best bid: %s\n", p.price(snap.Bids[0].Price))
	} else {
		fmt.Fprintln(p.w, "Best bid: -")
	}
	if len(snap.Asks) > 0 {
		fmt.Fprintf(p.w, "Best ask: %s\n", p.price(snap.Asks[0].Price))
	} else {
		fmt.Fprintln(p.w, "Best ask: -")
	}
	if snap.HasMid {
		fmt.Fprintf(p.w, "Spread: %s\n", p.price(snap.Spread))
	} else {
		fmt.Fprintln(p.w, "Spread: -")
	}
	fmt.Fprintln(p.w)
}
