// Package broadcaster drains the trade outbox into the downstream feed.
package broadcaster

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
)

// DefaultKey is the message key used when Options.Key is empty.
const DefaultKey = "matchbook"

type Options struct {
	Interval time.Duration
	// Key is set on every published message. Partitioners hash the key, so
	// one key for the whole feed keeps it on one partition and in sequence.
	Key string
	// MaxRetries parks a record as FAILED after that many failed attempts.
	// Zero retries forever.
	MaxRetries uint32
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type Broadcaster struct {
	outbox    *outbox.Outbox
	publisher Publisher
	key       []byte
	opts      Options
	log       *zap.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(ob *outbox.Outbox, pub Publisher, opts Options) *Broadcaster {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	return &Broadcaster{
		outbox:    ob,
		publisher: pub,
		key:       []byte(opts.Key),
		opts:      opts,
		log:       log.Named("broadcaster"),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run flushes on every tick until ctx is cancelled, then makes one last
// pass with a fresh deadline.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", zap.Duration("interval", b.opts.Interval))
	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			b.flush(final)
			cancel()
			b.log.Info("stopped")
			return
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

func (b *Broadcaster) flush(ctx context.Context) {
	if _, err := b.Flush(ctx); err != nil {
		b.log.Warn("flush failed", zap.Error(err))
	}
}

// ------------------------------------------------
// FLUSH
// ------------------------------------------------

// errHalt ends a pass after a failed publish so that the feed never sees
// a gap closed out of order.
var errHalt = errors.New("broadcaster: halt pass")

// Flush publishes pending records in sequence order and returns how many
// were acknowledged. A publish failure marks the record FAILED and ends the
// pass; the next pass starts again from it.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	acked := 0
	err := b.outbox.ScanPending(func(rec outbox.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.State == outbox.StateFailed && b.opts.MaxRetries > 0 && rec.Retries >= b.opts.MaxRetries {
			return nil
		}

		if err := b.outbox.UpdateState(rec.Seq, outbox.StateSent); err != nil {
			return err
		}

		if err := b.publisher.Publish(ctx, b.key, rec.Payload); err != nil {
			b.opts.Metrics.Published.WithLabelValues(metrics.ResultFailed).Inc()
			b.log.Warn("publish failed",
				zap.Uint64("seq", rec.Seq),
				zap.Uint32("retries", rec.Retries),
				zap.Error(err),
			)
			if err := b.outbox.UpdateState(rec.Seq, outbox.StateFailed); err != nil {
				return err
			}
			return errHalt
		}

		b.opts.Metrics.Published.WithLabelValues(metrics.ResultOK).Inc()
		acked++
		return b.outbox.UpdateState(rec.Seq, outbox.StateAcked)
	})
	if err != nil && !errors.Is(err, errHalt) {
		return acked, err
	}

	if _, err := b.outbox.Prune(); err != nil {
		return acked, err
	}
	if counts, err := b.outbox.Count(); err == nil {
		b.opts.Metrics.OutboxPending.Set(float64(counts[outbox.StateNew] + counts[outbox.StateSent] + counts[outbox.StateFailed]))
	}
	return acked, nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}
