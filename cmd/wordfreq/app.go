package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/persister"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/pipeline"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/resultcache"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/sqldb"
)

// app carries what the subcommands share: config, telemetry and the
// dependencies opened so far.
type app struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer

	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	checker  *health.Checker
	closers  []func() error

	dialCache func(config.RedisConfig) (cacheStore, error)
}

// cacheStore is the Redis surface the CLI needs; *pkgredis.Client has it.
type cacheStore interface {
	resultcache.Store
	Ping(ctx context.Context) error
	Close() error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		dialCache: func(cfg config.RedisConfig) (cacheStore, error) {
			return pkgredis.NewClient(cfg)
		},
	}
}

var setupRetry = resilience.RetryConfig{
	MaxAttempts: 3,
	Retryable: func(err error) bool {
		return !errors.Is(err, apperrors.ErrInvalidConfig)
	},
}

// load reads the config and installs logging and metrics. The default config
// path may be absent; an explicit --config must exist.
func (a *app) load(cmd *cobra.Command) error {
	path := a.configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logger.Setup(a.stderr, cfg.Logging.Level, cfg.Logging.Format)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)
	a.checker = health.NewChecker()
	slog.Debug("config loaded", "path", path, "driver", cfg.Store.Driver, "kinds", cfg.Pipeline.Kinds)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) openStore(ctx context.Context) (*persister.Persister, error) {
	var db *sqldb.Client
	err := resilience.Retry(ctx, "open store", setupRetry, func(context.Context) error {
		var err error
		db, err = sqldb.New(a.cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSetup, err)
	}
	a.closers = append(a.closers, db.Close)
	a.checker.Register("store", health.Ping(db.Ping))
	return persister.New(db), nil
}

func (a *app) breaker(name string) *resilience.CircuitBreaker {
	gauge := a.metrics.CircuitBreakerState
	gauge.WithLabelValues(name).Set(float64(resilience.StateClosed))
	return resilience.NewCircuitBreaker(name, resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, to resilience.State) {
			gauge.WithLabelValues(name).Set(float64(to))
		},
	})
}

// openCache connects to Redis when enabled. An unreachable Redis disables the
// cache for this process instead of failing it.
func (a *app) openCache(ctx context.Context) *resultcache.Cache {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	var client cacheStore
	err := resilience.Retry(ctx, "connect redis", setupRetry, func(context.Context) error {
		var err error
		client, err = a.dialCache(a.cfg.Redis)
		return err
	})
	if err != nil {
		slog.Warn("result cache disabled", "addr", a.cfg.Redis.Addr, "error", err)
		return nil
	}
	a.closers = append(a.closers, client.Close)
	a.checker.RegisterOptional("redis", health.Ping(client.Ping))
	return resultcache.New(client, a.cfg.Redis.CacheTTL, a.breaker("redis"), a.metrics)
}

func (a *app) openNotifier() *events.Notifier {
	if !a.cfg.Kafka.Enabled {
		return nil
	}
	producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.RunEvents)
	a.closers = append(a.closers, producer.Close)
	a.checker.RegisterOptional("kafka", health.Ping(kafka.Ping(a.cfg.Kafka.Brokers)))
	return events.NewNotifier(producer, a.breaker("kafka"), a.metrics)
}

// newRunner opens every dependency a run needs.
func (a *app) newRunner(ctx context.Context) (*pipeline.Runner, *persister.Persister, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	pcfg, err := pipeline.ConfigFrom(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []pipeline.Option{pipeline.WithMetrics(a.metrics)}
	if cache := a.openCache(ctx); cache != nil {
		opts = append(opts, pipeline.WithCache(cache))
	}
	if notifier := a.openNotifier(); notifier != nil {
		opts = append(opts, pipeline.WithNotifier(notifier))
	}
	runner, err := pipeline.NewRunner(pcfg, store, opts...)
	if err != nil {
		return nil, nil, err
	}
	return runner, store, nil
}

// tables returns the destination tables of the configured kinds.
func (a *app) tables() []string {
	var out []string
	for _, kind := range a.cfg.Pipeline.Kinds {
		out = append(out, a.cfg.Store.Tables.ForKind(kind))
	}
	return out
}
