// Package config loads matchbook settings from defaults, an optional config
// file, a .env file and MATCHBOOK_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const EnvPrefix = "MATCHBOOK"

type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Service   ServiceConfig   `mapstructure:"service"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type EngineConfig struct {
	// TickSize is the decimal price of one tick, e.g. "0.01".
	TickSize     string `mapstructure:"tick_size"`
	RecentTrades int    `mapstructure:"recent_trades"`
}

type ServiceConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9100".
	Addr string `mapstructure:"addr"`
}

type OutboxConfig struct {
	// Dir is empty for an in-memory outbox.
	Dir  string `mapstructure:"dir"`
	Sync bool   `mapstructure:"sync"`
}

// BroadcastConfig drives the trade feed. Key is the message key of every
// event; one key keeps the whole feed on one partition and so in order.
type BroadcastConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Driver     string        `mapstructure:"driver"`
	Brokers    []string      `mapstructure:"brokers"`
	Topic      string        `mapstructure:"topic"`
	Key        string        `mapstructure:"key"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries uint32        `mapstructure:"max_retries"`
	Codec      string        `mapstructure:"codec"`
}

type SimulatorConfig struct {
	Orders int   `mapstructure:"orders"`
	Seed   int64 `mapstructure:"seed"`
	Depth  int   `mapstructure:"depth"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.tick_size", "0.01")
	v.SetDefault("engine.recent_trades", 10)
	v.SetDefault("service.queue_size", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("outbox.dir", "")
	v.SetDefault("outbox.sync", false)
	v.SetDefault("broadcast.enabled", false)
	v.SetDefault("broadcast.driver", "sarama")
	v.SetDefault("broadcast.brokers", []string{"localhost:9092"})
	v.SetDefault("broadcast.topic", "matchbook.trades")
	v.SetDefault("broadcast.key", "matchbook")
	v.SetDefault("broadcast.interval", 250*time.Millisecond)
	v.SetDefault("broadcast.max_retries", 0)
	v.SetDefault("broadcast.codec", "json")
	v.SetDefault("simulator.orders", 10000)
	v.SetDefault("simulator.seed", 42)
	v.SetDefault("simulator.depth", 5)
}

// Load reads path when it is not empty. A missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	var errs []error

	tick, err := decimal.NewFromString(c.Engine.TickSize)
	if err != nil || !tick.IsPositive() {
		errs = append(errs, fmt.Errorf("engine.tick_size %q must be a positive decimal", c.Engine.TickSize))
	}
	if c.Engine.RecentTrades < 0 {
		errs = append(errs, fmt.Errorf("engine.recent_trades %d must not be negative", c.Engine.RecentTrades))
	}
	if c.Service.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("service.queue_size %d must be positive", c.Service.QueueSize))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	if c.Broadcast.Enabled {
		switch c.Broadcast.Driver {
		case "sarama", "kafka-go":
		default:
			errs = append(errs, fmt.Errorf("broadcast.driver %q must be sarama or kafka-go", c.Broadcast.Driver))
		}
		if len(c.Broadcast.Brokers) == 0 {
			errs = append(errs, errors.New("broadcast.brokers must not be empty"))
		}
		if c.Broadcast.Topic == "" {
			errs = append(errs, errors.New("broadcast.topic must not be empty"))
		}
		if c.Broadcast.Key == "" {
			errs = append(errs, errors.New("broadcast.key must not be empty"))
		}
		if c.Broadcast.Interval <= 0 {
			errs = append(errs, fmt.Errorf("broadcast.interval %s must be positive", c.Broadcast.Interval))
		}
	}
	switch strings.ToLower(c.Broadcast.Codec) {
	case "json", "proto", "protobuf":
	default:
		errs = append(errs, fmt.Errorf("broadcast.codec %q must be json or proto", c.Broadcast.Codec))
	}
	if c.Simulator.Orders < 0 {
		errs = append(errs, fmt.Errorf("simulator.orders %d must not be negative", c.Simulator.Orders))
	}
	if c.Simulator.Depth <= 0 {
		errs = append(errs, fmt.Errorf("simulator.depth %d must be positive", c.Simulator.Depth))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
