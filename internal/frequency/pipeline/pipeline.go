// Package pipeline runs tokenize, aggregate, rank, categorize and persist
// for each requested entity kind. Kinds run concurrently and fail
// independently: a failed letter pipeline never cancels or rolls back the
// word pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/aggregator"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/categorizer"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/persister"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/resultcache"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/tracing"
)

// Persister is implemented by *persister.Persister.
type Persister interface {
	Persist(ctx context.Context, batch persister.Batch) error
}

// SnapshotCache is implemented by *resultcache.Cache.
type SnapshotCache interface {
	Put(ctx context.Context, snap resultcache.Snapshot) error
}

// Notifier is implemented by *events.Notifier.
type Notifier interface {
	Notify(ctx context.Context, ev events.RunEvent)
}

// Config holds the run settings that do not change between requests.
type Config struct {
	Kinds          []frequency.Kind
	Tables         config.TableConfig
	Thresholds     categorizer.Thresholds
	Aggregation    aggregator.Options
	PersistTimeout time.Duration
}

// ConfigFrom converts the application config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	kinds, err := ParseKinds(cfg.Pipeline.Kinds)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	t := cfg.Pipeline.Thresholds
	return Config{
		Kinds:  kinds,
		Tables: cfg.Store.Tables,
		Thresholds: categorizer.Thresholds{
			Popular:     t.Popular,
			CommonLower: t.CommonLower,
			CommonUpper: t.CommonUpper,
			Rare:        t.Rare,
		},
		Aggregation: aggregator.Options{
			Workers:    cfg.Pipeline.Workers,
			ChunkLines: cfg.Pipeline.ChunkLines,
		},
		PersistTimeout: cfg.Pipeline.PersistTimeout,
	}, nil
}

// ParseKinds parses and deduplicates kind names, keeping first occurrence
// order.
func ParseKinds(names []string) ([]frequency.Kind, error) {
	seen := make(map[frequency.Kind]struct{}, len(names))
	kinds := make([]frequency.Kind, 0, len(names))
	for _, name := range names {
		k, err := frequency.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Request is one run over a fixed corpus snapshot.
type Request struct {
	RequestID string
	Source    corpus.Source
	// Kinds overrides Config.Kinds when non-empty.
	Kinds []frequency.Kind
	// Replace clears each destination table in the persist transaction.
	Replace bool
}

// KindResult summarizes one kind's pipeline.
type KindResult struct {
	Kind       frequency.Kind
	Table      string
	Stats      aggregator.Stats
	Distinct   int
	Rows       int
	Categories map[frequency.Category]int
	Duration   time.Duration
	Err        error
}

// Report is the outcome of a run, with one result per kind in request order.
type Report struct {
	RunID   string
	Results []KindResult
}

type Runner struct {
	cfg       Config
	persister Persister
	cache     SnapshotCache
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Runner)

func WithCache(c SnapshotCache) Option {
	return func(r *Runner) { r.cache = c }
}

func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner validates cfg and returns a Runner persisting through p.
func NewRunner(cfg Config, p Persister, opts ...Option) (*Runner, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
	}
	for _, k := range cfg.Kinds {
		if !config.ValidIdentifier(cfg.Tables.ForKind(string(k))) {
			return nil, fmt.Errorf("%w: no valid table for kind %s", apperrors.ErrInvalidConfig, k)
		}
	}
	r := &Runner{
		cfg:       cfg,
		persister: p,
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes every requested kind concurrently and waits for all of them.
// The returned error joins the per-kind errors; the report is complete
// either way.
func (r *Runner) Run(ctx context.Context, req Request) (Report, error) {
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = r.cfg.Kinds
	}
	for _, k := range kinds {
		if !config.ValidIdentifier(r.cfg.Tables.ForKind(string(k))) {
			return Report{}, fmt.Errorf("%w: no valid table for kind %s", apperrors.ErrInvalidConfig, k)
		}
	}
	if req.Source == nil {
		return Report{}, fmt.Errorf("%w: no corpus source", apperrors.ErrSource)
	}

	runID := ulid.Make().String()
	ctx = logger.WithRunID(ctx, runID)
	ctx, span := tracing.StartSpan(ctx, "run", runID)
	log := logger.FromContext(ctx).With("component", "pipeline")
	log.Info("run started",
		"request_id", req.RequestID,
		"kinds", kinds,
		"source", req.Source.Name(),
		"replace", req.Replace,
	)

	report := Report{RunID: runID, Results: make([]KindResult, len(kinds))}
	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Results[i] = r.runKind(ctx, runID, kind, req)
		}()
	}
	wg.Wait()

	var errs []error
	for _, res := range report.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	err := errors.Join(errs...)
	span.SetError(err)
	span.End()
	span.Log(log)

	status := "success"
	if err != nil {
		status = "failure"
		log.Error("run failed", "failed_kinds", len(errs), "duration", span.Duration(), "error", err)
	} else {
		log.Info("run completed", "duration", span.Duration())
	}
	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(status).Inc()
	}
	return report, err
}
