package orderbook

import (
	"sort"
	"time"

	"matchbook/infra/sequence"
)

// Trade is one execution between an aggressor (taker) and a resting order
// (maker). Price is always the maker's level price.
type Trade struct {
	Seq          uint64
	BuyOrderID   uint64
	SellOrderID  uint64
	MakerOrderID uint64
	TakerOrderID uint64
	Aggressor    Side
	Price        int64
	Qty          int64
	Time         time.Time
}

// TradeTape is an append-only log of trades in execution order.
type TradeTape struct {
	trades []Trade
	seq    *sequence.Sequencer
}

// NewTradeTape numbers trades from start+1.
func NewTradeTape(start uint64) *TradeTape {
	return &TradeTape{seq: sequence.New(start)}
}

// Append stamps t with the next sequence number and records it.
func (tt *TradeTape) Append(t Trade) Trade {
	t.Seq = tt.seq.Next()
	tt.trades = append(tt.trades, t)
	return t
}

// Recent returns up to n of the latest trades, most recent last.
func (tt *TradeTape) Recent(n int) []Trade {
	if n <= 0 {
		return []Trade{}
	}
	start := len(tt.trades) - n
	if start < 0 {
		start = 0
	}
	out := make([]Trade, len(tt.trades)-start)
	copy(out, tt.trades[start:])
	return out
}

// Since returns every trade with a sequence number greater than seq.
func (tt *TradeTape) Since(seq uint64) []Trade {
	i := sort.Search(len(tt.trades), func(i int) bool {
		return tt.trades[i].Seq > seq
	})
	out := make([]Trade, len(tt.trades)-i)
	copy(out, tt.trades[i:])
	return out
}

func (tt *TradeTape) Count() int {
	return len(tt.trades)
}

func (tt *TradeTape) LastSeq() uint64 {
	return tt.seq.Current()
}
