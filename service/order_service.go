package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/metrics"
)

var ErrClosed = errors.New("service: closed")

// TradeSink durably accepts encoded trades. *outbox.Outbox is one.
type TradeSink interface {
	PutBatch(seqs []uint64, payloads [][]byte) error
	// LastSeq is the highest trade sequence the sink has accepted, in this
	// run or any earlier one.
	LastSeq() uint64
}

type Options struct {
	// QueueSize bounds commands waiting for the writer.
	QueueSize int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// Outbox receives every trade, encoded with Codec. Nil disables the feed.
	// Trade sequences continue after Outbox.LastSeq.
	Outbox TradeSink
	Codec  codec.Codec
	Now    func() time.Time
}

type commandKind uint8

const (
	cmdSubmit commandKind = iota
	cmdCancel
)

type command struct {
	kind  commandKind
	side  orderbook.Side
	typ   orderbook.OrderType
	price int64
	qty   int64
	id    uint64
	reply chan result
}

type result struct {
	id  uint64
	ok  bool
	err error
}

/*
OrderService is the ONLY write entry point into the engine.

Writes go through the command channel and are applied by run under the
write lock. Reads take the read lock and never touch the channel.
*/
type OrderService struct {
	mu     sync.RWMutex
	engine *orderbook.Engine

	cmds chan command
	quit chan struct{}
	done chan struct{}
	once sync.Once

	outbox  TradeSink
	codec   codec.Codec
	fed     uint64 // last trade seq handed to the outbox
	metrics *metrics.Metrics
	log     *zap.Logger
}

// New starts the writer goroutine. Close stops it.
func New(opts Options) *OrderService {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Codec == nil {
		opts.Codec = codec.JSON{}
	}

	var start uint64
	if opts.Outbox != nil {
		start = opts.Outbox.LastSeq()
	}

	s := &OrderService{
		engine: orderbook.NewEngine(orderbook.Config{
			Logger:        log,
			Now:           opts.Now,
			TradeSeqStart: start,
		}),
		cmds:    make(chan command, opts.QueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		outbox:  opts.Outbox,
		codec:   opts.Codec,
		fed:     start,
		metrics: opts.Metrics,
		log:     log.Named("service"),
	}
	go s.run()
	return s
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// PlaceOrder submits a new order and returns its id once matching is done.
// ctx only bounds the wait; an admitted order is always processed.
func (s *OrderService) PlaceOrder(
	ctx context.Context,
	side orderbook.Side,
	typ orderbook.OrderType,
	price int64,
	qty int64,
) (uint64, error) {
	start := time.Now()
	res, err := s.do(ctx, command{kind: cmdSubmit, side: side, typ: typ, price: price, qty: qty})
	if err != nil {
		return 0, err
	}
	s.metrics.SubmitLatency.Observe(time.Since(start).Seconds())
	return res.id, res.err
}

// CancelOrder removes a resting order. It reports false for unknown, filled
// and already cancelled ids.
func (s *OrderService) CancelOrder(ctx context.Context, id uint64) (bool, error) {
	res, err := s.do(ctx, command{kind: cmdCancel, id: id})
	if err != nil {
		return false, err
	}
	return res.ok, nil
}

func (s *OrderService) do(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)

	select {
	case <-s.quit:
		return result{}, ErrClosed
	default:
	}

	select {
	case s.cmds <- cmd:
	case <-s.quit:
		return result{}, ErrClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-s.done:
		// The writer may have answered just before stopping.
		select {
		case res := <-cmd.reply:
			return res, nil
		default:
			return result{}, ErrClosed
		}
	}
}

// Close stops admitting commands, applies those already queued and waits
// for the writer to exit.
func (s *OrderService) Close() error {
	s.once.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

//
// ──────────────────────────────────────────────────────────
// Writer
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) run() {
	defer close(s.done)
	for {
		select {
		case cmd := <-s.cmds:
			s.apply(cmd)
		case <-s.quit:
			for {
				select {
				case cmd := <-s.cmds:
					s.apply(cmd)
				default:
					return
				}
			}
		}
	}
}

func (s *OrderService) apply(cmd command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res result
	switch cmd.kind {
	case cmdSubmit:
		res.id, res.err = s.engine.Submit(cmd.side, cmd.typ, cmd.price, cmd.qty)
		outcome := metrics.ResultAccepted
		if res.err != nil {
			outcome = metrics.ResultRejected
			s.log.Debug("order rejected",
				zap.Stringer("side", cmd.side),
				zap.Stringer("type", cmd.typ),
				zap.Int64("price", cmd.price),
				zap.Int64("qty", cmd.qty),
				zap.Error(res.err),
			)
		}
		s.metrics.Orders.WithLabelValues(cmd.side.String(), cmd.typ.String(), outcome).Inc()
	case cmdCancel:
		res.ok = s.engine.Cancel(cmd.id)
		outcome := metrics.ResultOK
		if !res.ok {
			outcome = metrics.ResultMissed
		}
		s.metrics.Cancels.WithLabelValues(outcome).Inc()
	}
	s.feed()
	s.observe()

	cmd.reply <- res
}

// feed hands trades newer than the last fed sequence to the outbox. It runs
// after every command, so a failed write is retried by the next one of any
// kind; matching never waits on the feed. A trade that cannot be encoded is
// dropped from the feed and counted.
func (s *OrderService) feed() {
	trades := s.engine.TradesSince(s.fed)
	if len(trades) == 0 {
		return
	}
	var qty int64
	for _, t := range trades {
		qty += t.Qty
	}
	if s.outbox == nil {
		s.countTrades(len(trades), qty)
		s.fed = trades[len(trades)-1].Seq
		return
	}

	seqs := make([]uint64, 0, len(trades))
	payloads := make([][]byte, 0, len(trades))
	var dropped int
	for _, t := range trades {
		b, err := s.codec.Encode(codec.FromTrade(t))
		if err != nil {
			dropped++
			s.log.Error("trade dropped from feed", zap.Uint64("seq", t.Seq), zap.Error(err))
			continue
		}
		seqs = append(seqs, t.Seq)
		payloads = append(payloads, b)
	}
	if len(seqs) > 0 {
		if err := s.outbox.PutBatch(seqs, payloads); err != nil {
			s.log.Error("outbox write failed", zap.Int("trades", len(trades)), zap.Error(err))
			return
		}
	}
	s.metrics.FeedDropped.Add(float64(dropped))
	s.countTrades(len(trades), qty)
	s.fed = trades[len(trades)-1].Seq
}

func (s *OrderService) countTrades(n int, qty int64) {
	s.metrics.Trades.Add(float64(n))
	s.metrics.TradedQty.Add(float64(qty))
}

func (s *OrderService) observe() {
	st := s.engine.Stats()
	s.metrics.LiveOrders.Set(float64(st.LiveOrders))
	s.metrics.Levels.WithLabelValues(orderbook.Buy.String()).Set(float64(st.BidLevels))
	s.metrics.Levels.WithLabelValues(orderbook.Sell.String()).Set(float64(st.AskLevels))
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) BestBid() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Query().BestBid()
}

func (s *OrderService) BestAsk() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Query().BestAsk()
}

func (s *OrderService) MidPrice() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Query().MidPrice()
}

func (s *OrderService) Spread() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Query().Spread()
}

func (s *OrderService) Depth(levels int, side orderbook.Side) []orderbook.DepthLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Query().Depth(levels, side)
}

func (s *OrderService) RecentTrades(n int) []orderbook.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.RecentTrades(n)
}

func (s *OrderService) Order(id uint64) (orderbook.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Order(id)
}

func (s *OrderService) Stats() orderbook.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Stats()
}

// Snapshot is a consistent view of the top of the book.
type Snapshot struct {
	Bids   []orderbook.DepthLevel
	Asks   []orderbook.DepthLevel
	Mid    decimal.Decimal
	HasMid bool
	Spread int64
	Trades []orderbook.Trade
	Stats  orderbook.Stats
}

// Snapshot reads depth, mid, spread, recent trades and stats under a single
// read lock.
func (s *OrderService) Snapshot(levels, trades int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.engine.Query()
	snap := Snapshot{
		Bids:   q.Depth(levels, orderbook.Buy),
		Asks:   q.Depth(levels, orderbook.Sell),
		Trades: s.engine.RecentTrades(trades),
		Stats:  s.engine.Stats(),
	}
	snap.Mid, snap.HasMid = q.MidPrice()
	snap.Spread, _ = q.Spread()
	return snap
}

