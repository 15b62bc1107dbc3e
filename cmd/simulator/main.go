// Command simulator runs the order book demo and a seeded throughput test
// against an in-process OrderService.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"matchbook/config"
	"matchbook/domain/tick"
	"matchbook/infra/codec"
	"matchbook/infra/kafka"
	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
	"matchbook/jobs/broadcaster"
	"matchbook/service"
)

func main() {
	flags := pflag.NewFlagSet("simulator", pflag.ExitOnError)
	cfgPath := flags.String("config", "", "optional config file (yaml, toml or json)")
	orders := flags.Int("orders", -1, "throughput orders; overrides simulator.orders")
	seed := flags.Int64("seed", 0, "throughput seed; overrides simulator.seed")
	skipDemo := flags.Bool("skip-demo", false, "only run the throughput test")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *orders >= 0 {
		cfg.Simulator.Orders = *orders
	}
	if flags.Changed("seed") {
		cfg.Simulator.Seed = *seed
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdout, !*skipDemo); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("simulator failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, out io.Writer, demo bool) error {
	size, err := decimal.NewFromString(cfg.Engine.TickSize)
	if err != nil {
		return fmt.Errorf("tick size: %w", err)
	}
	scale, err := tick.NewScale(size)
	if err != nil {
		return err
	}

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---------------- Outbox ----------------

	// Trades only go to the outbox when something drains it.
	var ob *outbox.Outbox
	if cfg.Broadcast.Enabled {
		ob, err = outbox.Open(outbox.Options{Dir: cfg.Outbox.Dir, Sync: cfg.Outbox.Sync, Logger: log})
		if err != nil {
			return err
		}
		defer ob.Close()
	}

	c, err := codec.ByName(cfg.Broadcast.Codec)
	if err != nil {
		return err
	}

	// ---------------- Service ----------------

	svcOpts := service.Options{
		QueueSize: cfg.Service.QueueSize,
		Logger:    log,
		Metrics:   m,
		Codec:     c,
	}
	if ob != nil {
		svcOpts.Outbox = ob
	}
	svc := service.New(svcOpts)
	defer svc.Close()

	// ---------------- Background Jobs ----------------

	jobs, jobCtx := errgroup.WithContext(ctx)
	jobCtx, cancelJobs := context.WithCancel(jobCtx)
	defer cancelJobs()

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		jobs.Go(func() error {
			log.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		jobs.Go(func() error {
			<-jobCtx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		})
	}

	if cfg.Broadcast.Enabled {
		pub, err := newPublisher(cfg.Broadcast)
		if err != nil {
			return err
		}
		bc := broadcaster.New(ob, pub, broadcaster.Options{
			Interval:   cfg.Broadcast.Interval,
			Key:        cfg.Broadcast.Key,
			MaxRetries: cfg.Broadcast.MaxRetries,
			Logger:     log,
			Metrics:    m,
		})
		defer bc.Close()
		jobs.Go(func() error {
			bc.Run(jobCtx)
			return nil
		})
	}

	// ---------------- Simulation ----------------

	simErr := simulate(ctx, cfg, svc, scale, out, demo)

	// The service stops before the jobs so the broadcaster's final pass
	// sees every trade.
	svc.Close()
	cancelJobs()
	if err := jobs.Wait(); err != nil && simErr == nil {
		simErr = err
	}
	return simErr
}

func simulate(ctx context.Context, cfg config.Config, svc *service.OrderService, scale tick.Scale, out io.Writer, demo bool) error {
	p := printer{w: out, scale: scale}

	if demo {
		fmt.Fprintln(out, "=== Limit Order Book Simulator ===")
		fmt.Fprintln(out)
		r := runner{svc: svc, scale: scale, out: p, depth: cfg.Simulator.Depth, trades: cfg.Engine.RecentTrades}
		if err := r.Demo(ctx); err != nil {
			return err
		}
		p.Stats(svc.Snapshot(cfg.Simulator.Depth, 0))
	}

	if cfg.Simulator.Orders == 0 {
		return nil
	}

	fmt.Fprintln(out, "\n=== Performance Test ===")
	perf := service.New(service.Options{QueueSize: cfg.Service.QueueSize})
	defer perf.Close()

	r := runner{svc: perf, scale: scale, out: p, depth: cfg.Simulator.Depth}
	elapsed, err := r.Throughput(ctx, cfg.Simulator.Orders, cfg.Simulator.Seed)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Processed %d orders in %s\n", cfg.Simulator.Orders, elapsed.Round(time.Millisecond))
	if elapsed > 0 {
		fmt.Fprintf(out, "Throughput: %.0f orders/sec\n", float64(cfg.Simulator.Orders)/elapsed.Seconds())
	}
	p.Stats(perf.Snapshot(cfg.Simulator.Depth, 0))
	return nil
}

func newPublisher(cfg config.BroadcastConfig) (broadcaster.Publisher, error) {
	switch cfg.Driver {
	case "kafka-go":
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	default:
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	}
}
