// Package resultcache keeps the latest categorized result of each kind in
// Redis so reports do not have to query the destination table. The cache is
// advisory: every failure is logged and counted, and callers fall back to
// the store.
package resultcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/resilience"
)

const keyPrefix = "wordfreq:result:"

// Store is implemented by *pkgredis.Client. Get reports a missing key as
// apperrors.ErrCacheMiss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Snapshot is the cached result of one kind from one run.
type Snapshot struct {
	RunID       string                       `json:"run_id"`
	Kind        frequency.Kind               `json:"kind"`
	Table       string                       `json:"table"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Entries     []frequency.CategorizedEntry `json:"entries"`
}

// Filter returns the entries of category c in stored order. An empty c
// returns all entries.
func (s Snapshot) Filter(c frequency.Category) []frequency.CategorizedEntry {
	if c == "" {
		return s.Entries
	}
	var out []frequency.CategorizedEntry
	for _, e := range s.Entries {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

type Cache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
}

// New wraps store. breaker and m may be nil.
func New(store Store, ttl time.Duration, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Key returns the Redis key of kind's snapshot.
func Key(kind frequency.Kind) string {
	return keyPrefix + string(kind)
}

func (c *Cache) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

func (c *Cache) count(op, result string) {
	if c.metrics != nil {
		c.metrics.CacheOpsTotal.WithLabelValues(op, result).Inc()
	}
}

// Put stores snap under its kind's key.
func (c *Cache) Put(ctx context.Context, snap Snapshot) error {
	key := Key(snap.Kind)
	err := c.guard(ctx, func(ctx context.Context) error {
		return pkgredis.SetJSON(ctx, c.store, key, snap, c.ttl)
	})
	if err != nil {
		c.count("put", "error")
		return fmt.Errorf("caching %s: %w", key, err)
	}
	c.count("put", "stored")
	c.logger.Debug("snapshot cached", "key", key, "entries", len(snap.Entries), "ttl", c.ttl)
	return nil
}

// Get returns the cached snapshot of kind, or an error wrapping ErrCacheMiss.
// A miss does not count against the circuit breaker.
func (c *Cache) Get(ctx context.Context, kind frequency.Kind) (Snapshot, error) {
	key := Key(kind)
	var (
		snap Snapshot
		miss bool
	)
	err := c.guard(ctx, func(ctx context.Context) error {
		s, err := pkgredis.GetJSON[Snapshot](ctx, c.store, key)
		if errors.Is(err, apperrors.ErrCacheMiss) {
			miss = true
			return nil
		}
		snap = s
		return err
	})
	switch {
	case err != nil:
		c.count("get", "error")
		return Snapshot{}, fmt.Errorf("reading %s: %w", key, err)
	case miss:
		c.count("get", "miss")
		return Snapshot{}, fmt.Errorf("%w: %s", apperrors.ErrCacheMiss, key)
	}
	c.count("get", "hit")
	return snap, nil
}

// GetOrLoad returns the cached snapshot or calls load and caches its result.
// Concurrent loads of one kind are collapsed. The boolean reports a cache
// hit. Cache errors are logged and never returned; load errors are.
func (c *Cache) GetOrLoad(ctx context.Context, kind frequency.Kind, load func(ctx context.Context) (Snapshot, error)) (Snapshot, bool, error) {
	snap, err := c.Get(ctx, kind)
	if err == nil {
		return snap, true, nil
	}
	if !errors.Is(err, apperrors.ErrCacheMiss) {
		c.logger.Warn("cache read failed, loading from store", "kind", kind, "error", err)
	}
	v, err, _ := c.group.Do(string(kind), func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, loaded); err != nil {
			c.logger.Warn("cache write failed", "kind", kind, "error", err)
		}
		return loaded, nil
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	return v.(Snapshot), false, nil
}

// Invalidate removes every cached snapshot.
func (c *Cache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.guard(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating result cache: %w", err)
	}
	c.logger.Info("result cache invalidated", "keys_deleted", deleted)
	return nil
}
