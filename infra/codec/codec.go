package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/orderbook"
)

var (
	ErrUnknownCodec = errors.New("codec: unknown codec")
	ErrMalformed    = errors.New("codec: malformed event")
)

type Codec interface {
	Name() string
	Encode(TradeEvent) ([]byte, error)
	Decode([]byte) (TradeEvent, error)
}

// ByName returns the codec registered as "json" or "proto".
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "json":
		return JSON{}, nil
	case "proto", "protobuf":
		return Proto{}, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownCodec)
}

// ---------- JSON ----------

type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(ev TradeEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func (JSON) Decode(b []byte) (TradeEvent, error) {
	var ev TradeEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return TradeEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ev, nil
}

// ---------- Protobuf ----------

// Proto writes the protobuf wire format of
//
//	message TradeEvent {
//	  bytes  event_id       = 1;
//	  uint64 seq            = 2;
//	  uint64 buy_order_id   = 3;
//	  uint64 sell_order_id  = 4;
//	  uint64 maker_order_id = 5;
//	  uint64 taker_order_id = 6;
//	  Side   aggressor      = 7;
//	  sint64 price          = 8;
//	  sint64 qty            = 9;
//	  fixed64 time_unix_nano = 10;
//	}
type Proto struct{}

const (
	fieldEventID protowire.Number = iota + 1
	fieldSeq
	fieldBuyOrderID
	fieldSellOrderID
	fieldMakerOrderID
	fieldTakerOrderID
	fieldAggressor
	fieldPrice
	fieldQty
	fieldTime
)

func (Proto) Name() string { return "proto" }

func (Proto) Encode(ev TradeEvent) ([]byte, error) {
	b := make([]byte, 0, 96)
	b = protowire.AppendTag(b, fieldEventID, protowire.BytesType)
	b = protowire.AppendBytes(b, ev.EventID[:])
	b = appendUvarint(b, fieldSeq, ev.Seq)
	b = appendUvarint(b, fieldBuyOrderID, ev.BuyOrderID)
	b = appendUvarint(b, fieldSellOrderID, ev.SellOrderID)
	b = appendUvarint(b, fieldMakerOrderID, ev.MakerOrderID)
	b = appendUvarint(b, fieldTakerOrderID, ev.TakerOrderID)
	b = appendUvarint(b, fieldAggressor, uint64(ev.Aggressor))
	b = appendUvarint(b, fieldPrice, protowire.EncodeZigZag(ev.Price))
	b = appendUvarint(b, fieldQty, protowire.EncodeZigZag(ev.Qty))
	b = protowire.AppendTag(b, fieldTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64(ev.Time.UnixNano()))
	return b, nil
}

// appendUvarint skips zero values like proto3 does.
func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (Proto) Decode(b []byte) (TradeEvent, error) {
	var ev TradeEvent
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return TradeEvent{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldEventID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return TradeEvent{}, fmt.Errorf("%w: event_id: %v", ErrMalformed, protowire.ParseError(n))
			}
			id, err := uuid.FromBytes(v)
			if err != nil {
				return TradeEvent{}, fmt.Errorf("%w: event_id: %v", ErrMalformed, err)
			}
			ev.EventID = id
			b = b[n:]
		case num == fieldTime && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return TradeEvent{}, fmt.Errorf("%w: time: %v", ErrMalformed, protowire.ParseError(n))
			}
			ev.Time = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return TradeEvent{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			setVarint(&ev, num, v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return TradeEvent{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return ev, nil
}

func setVarint(ev *TradeEvent, num protowire.Number, v uint64) {
	switch num {
	case fieldSeq:
		ev.Seq = v
	case fieldBuyOrderID:
		ev.BuyOrderID = v
	case fieldSellOrderID:
		ev.SellOrderID = v
	case fieldMakerOrderID:
		ev.MakerOrderID = v
	case fieldTakerOrderID:
		ev.TakerOrderID = v
	case fieldAggressor:
		ev.Aggressor = orderbook.Side(v)
	case fieldPrice:
		ev.Price = protowire.DecodeZigZag(v)
	case fieldQty:
		ev.Qty = protowire.DecodeZigZag(v)
	}
}
