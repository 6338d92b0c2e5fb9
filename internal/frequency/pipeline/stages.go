package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/aggregator"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/categorizer"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/persister"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/ranker"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/resultcache"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/tracing"
)

// runKind runs the stages of one kind in order and publishes the outcome.
// The stage error, if any, is recorded in the result.
func (r *Runner) runKind(ctx context.Context, runID string, kind frequency.Kind, req Request) KindResult {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, string(kind))
	defer span.End()
	log := logger.FromContext(ctx).With("component", "pipeline", "kind", kind)

	res := KindResult{Kind: kind, Table: r.cfg.Tables.ForKind(string(kind))}
	res.Err = r.execute(ctx, kind, req, &res)
	res.Duration = time.Since(start)
	span.SetAttr("rows", res.Rows)
	span.SetError(res.Err)

	ev := events.RunEvent{
		RunID:      runID,
		RequestID:  req.RequestID,
		Kind:       kind,
		Table:      res.Table,
		Lines:      res.Stats.Lines,
		Terms:      res.Stats.Terms,
		Distinct:   res.Distinct,
		Rows:       res.Rows,
		Categories: res.Categories,
		DurationMs: res.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	status := "success"
	if res.Err != nil {
		status = "failure"
		ev.Type = events.EventRunFailed
		ev.Error = res.Err.Error()
		var stageErr *apperrors.StageError
		if errors.As(res.Err, &stageErr) {
			ev.Stage = stageErr.Stage
		}
		log.Error("kind pipeline failed", "stage", ev.Stage, "error", res.Err)
	} else {
		ev.Type = events.EventRunCompleted
		log.Info("kind pipeline completed",
			"table", res.Table,
			"lines", res.Stats.Lines,
			"terms", res.Stats.Terms,
			"distinct", res.Distinct,
			"rows", res.Rows,
			"duration", res.Duration,
		)
	}
	if r.metrics != nil {
		r.metrics.KindRunsTotal.WithLabelValues(string(kind), status).Inc()
	}
	if r.notifier != nil {
		r.notifier.Notify(ctx, ev)
	}
	return res
}

func (r *Runner) execute(ctx context.Context, kind frequency.Kind, req Request, res *KindResult) error {
	k := string(kind)
	tok, ok := tokenizer.ForKind(kind)
	if !ok {
		return apperrors.Stage(k, apperrors.StageSource, "", apperrors.Invariantf("no tokenizer for kind %q", kind))
	}

	var counts aggregator.Counts
	err := r.stage(ctx, kind, apperrors.StageAggregate, func(ctx context.Context) error {
		lr, err := corpus.Open(ctx, req.Source)
		if err != nil {
			return apperrors.Stage(k, apperrors.StageSource, "", err)
		}
		defer lr.Close()
		var aggErr error
		counts, res.Stats, aggErr = aggregator.CountLines(ctx, lr.Lines(), tok, r.cfg.Aggregation)
		if err := lr.Err(); err != nil {
			return apperrors.Stage(k, apperrors.StageSource, "", err)
		}
		if aggErr != nil {
			return apperrors.Stage(k, apperrors.StageAggregate, "", aggErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.Distinct = counts.Len()
	if r.metrics != nil {
		r.metrics.LinesRead.WithLabelValues(k).Add(float64(res.Stats.Lines))
		r.metrics.TermsCounted.WithLabelValues(k).Add(float64(res.Stats.Terms))
		r.metrics.DistinctTerms.WithLabelValues(k).Set(float64(res.Distinct))
	}

	var ranked []frequency.RankedEntry
	err = r.stage(ctx, kind, apperrors.StageRank, func(context.Context) error {
		var err error
		ranked, err = ranker.Rank(counts.Entries())
		return apperrors.Stage(k, apperrors.StageRank, "", err)
	})
	if err != nil {
		return err
	}

	var categorized []frequency.CategorizedEntry
	err = r.stage(ctx, kind, apperrors.StageCategorize, func(context.Context) error {
		categorized = categorizer.Categorize(ranked, r.cfg.Thresholds)
		return apperrors.Stage(k, apperrors.StageCategorize, "",
			categorizer.Check(categorized, len(ranked), r.cfg.Thresholds))
	})
	if err != nil {
		return err
	}
	res.Categories = make(map[frequency.Category]int, 3)
	for _, e := range categorized {
		res.Categories[e.Category]++
	}

	batch := persister.Batch{
		Kind:    kind,
		Table:   res.Table,
		Entries: categorized,
		Replace: req.Replace,
	}
	err = r.stage(ctx, kind, apperrors.StagePersist, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, r.cfg.PersistTimeout, "persist "+k, func(ctx context.Context) error {
			return r.persister.Persist(ctx, batch)
		})
	})
	if r.metrics != nil {
		status := "committed"
		if err != nil {
			status = "failed"
		}
		r.metrics.PersistBatches.WithLabelValues(k, status).Inc()
	}
	if err != nil {
		var stageErr *apperrors.StageError
		if !errors.As(err, &stageErr) {
			err = apperrors.Stage(k, apperrors.StagePersist, res.Table, fmt.Errorf("%w: %w", apperrors.ErrPersist, err))
		}
		return err
	}
	res.Rows = len(categorized)
	if r.metrics != nil {
		for c, n := range res.Categories {
			r.metrics.RowsPersisted.WithLabelValues(k, string(c)).Add(float64(n))
		}
	}

	if r.cache != nil {
		snap := resultcache.Snapshot{
			RunID:       logger.RunID(ctx),
			Kind:        kind,
			Table:       res.Table,
			GeneratedAt: time.Now().UTC(),
			Entries:     categorized,
		}
		if err := r.cache.Put(ctx, snap); err != nil {
			logger.FromContext(ctx).Warn("result snapshot not cached", "kind", kind, "error", err)
		}
	}
	return nil
}

// stage runs fn inside a child span and records its duration.
func (r *Runner) stage(ctx context.Context, kind frequency.Kind, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	err := fn(ctx)
	span.SetError(err)
	span.End()
	if r.metrics != nil {
		r.metrics.StageDuration.WithLabelValues(string(kind), name).Observe(span.Duration().Seconds())
	}
	return err
}
