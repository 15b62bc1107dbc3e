// Package codec turns executed trades into TradeEvents and encodes them for
// the downstream feed.
package codec

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"matchbook/domain/orderbook"
)

// eventSpace namespaces trade event ids so that the same trade sequence
// always yields the same id, which consumers use for deduplication.
var eventSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("matchbook/trade"))

type TradeEvent struct {
	EventID      uuid.UUID      `json:"event_id"`
	Seq          uint64         `json:"seq"`
	BuyOrderID   uint64         `json:"buy_order_id"`
	SellOrderID  uint64         `json:"sell_order_id"`
	MakerOrderID uint64         `json:"maker_order_id"`
	TakerOrderID uint64         `json:"taker_order_id"`
	Aggressor    orderbook.Side `json:"aggressor"`
	Price        int64          `json:"price"`
	Qty          int64          `json:"qty"`
	Time         time.Time      `json:"time"`
}

func EventID(seq uint64) uuid.UUID {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return uuid.NewSHA1(eventSpace, b[:])
}

func FromTrade(t orderbook.Trade) TradeEvent {
	return TradeEvent{
		EventID:      EventID(t.Seq),
		Seq:          t.Seq,
		BuyOrderID:   t.BuyOrderID,
		SellOrderID:  t.SellOrderID,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		Aggressor:    t.Aggressor,
		Price:        t.Price,
		Qty:          t.Qty,
		Time:         t.Time.UTC(),
	}
}
