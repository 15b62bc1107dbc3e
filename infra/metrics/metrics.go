// Package metrics holds the Prometheus collectors of the order service and
// the trade broadcaster.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "matchbook"

// Result label values.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultOK       = "ok"
	ResultMissed   = "missed"
	ResultFailed   = "failed"
)

type Metrics struct {
	// Orders counts submissions by side, type and result.
	Orders    *prometheus.CounterVec
	Cancels   *prometheus.CounterVec
	Trades    prometheus.Counter
	TradedQty prometheus.Counter

	LiveOrders prometheus.Gauge
	Levels     *prometheus.GaugeVec

	SubmitLatency prometheus.Histogram

	// FeedDropped counts trades that could not be encoded for the feed.
	FeedDropped   prometheus.Counter
	Published     *prometheus.CounterVec
	OutboxPending prometheus.Gauge
}

// New registers every collector with reg. Each service owns its registry so
// that several instances can live in one process.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Orders submitted, by side, type and result",
			},
			[]string{"side", "type", "result"},
		),
		Cancels: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cancels_total",
				Help:      "Cancel requests, by result",
			},
			[]string{"result"}, // ok, missed
		),
		Trades: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades executed",
		}),
		TradedQty: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_quantity_total",
			Help:      "Quantity executed across all trades",
		}),
		LiveOrders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_orders",
			Help:      "Orders resting in the book",
		}),
		Levels: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "price_levels",
				Help:      "Non-empty price levels, by side",
			},
			[]string{"side"},
		),
		SubmitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time from admission to reply for a submit",
			Buckets:   []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005, 0.01},
		}),
		FeedDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_dropped_total",
			Help:      "Trades left out of the downstream feed because they failed to encode",
		}),
		Published: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_published_total",
				Help:      "Trade events handed to the downstream feed, by result",
			},
			[]string{"result"}, // ok, failed
		),
		OutboxPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending",
			Help:      "Trade events not yet acknowledged by the feed",
		}),
	}
}

// NewNop returns collectors registered nowhere.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
