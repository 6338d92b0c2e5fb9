// Package aggregator counts term occurrences. Counting is associative and
// commutative: partial Counts built from disjoint partitions of the corpus can
// be merged in any order to the same result, which is what lets CountLines
// fan the corpus out across worker goroutines.
package aggregator

import (
	"context"
	"iter"
	"log/slog"
	"math"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

// Counts maps each distinct term to its number of occurrences.
type Counts map[string]int64

// Add records one occurrence of term.
func (c Counts) Add(term string) {
	c[term]++
}

// Len returns the number of distinct terms.
func (c Counts) Len() int {
	return len(c)
}

// Merge adds every count of other into c. A non-positive partial count or an
// overflowing sum means a partial result was corrupted; c is left unchanged
// in that case.
func (c Counts) Merge(other Counts) error {
	for term, n := range other {
		if n < 1 {
			return apperrors.Invariantf("partial count for %q is %d", term, n)
		}
		if c[term] > math.MaxInt64-n {
			return apperrors.Invariantf("count for %q overflows", term)
		}
	}
	for term, n := range other {
		c[term] += n
	}
	return nil
}

// Entries returns one CountEntry per distinct term, sorted by term so the
// output does not depend on map iteration order.
func (c Counts) Entries() []frequency.CountEntry {
	entries := make([]frequency.CountEntry, 0, len(c))
	for term, n := range c {
		entries = append(entries, frequency.CountEntry{Term: term, Frequency: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Count accumulates every term of the sequence.
func Count(terms iter.Seq[string]) Counts {
	counts := make(Counts)
	for term := range terms {
		counts.Add(term)
	}
	return counts
}

// Options controls the parallel fan-out of CountLines.
type Options struct {
	Workers    int
	ChunkLines int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.ChunkLines <= 0 {
		o.ChunkLines = 1024
	}
	return o
}

// Stats describes the work done by CountLines.
type Stats struct {
	Lines  int64
	Terms  int64
	Chunks int64
}

type partial struct {
	counts Counts
	terms  int64
}

// CountLines tokenizes lines with tok and counts the terms using
// opts.Workers goroutines. Each chunk is counted with Count and merged into
// the worker's partial. The line sequence is consumed once, in chunks of
// opts.ChunkLines, so at most Workers+1 chunks are held in memory besides the
// count maps.
func CountLines(ctx context.Context, lines iter.Seq[string], tok tokenizer.Tokenizer, opts Options) (Counts, Stats, error) {
	opts = opts.withDefaults()
	logger := slog.Default().With("component", "aggregator")

	var stats Stats
	chunks := make(chan []string, opts.Workers)
	partials := make([]partial, opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(chunks)
		chunk := make([]string, 0, opts.ChunkLines)
		for line := range lines {
			chunk = append(chunk, line)
			stats.Lines++
			if len(chunk) < opts.ChunkLines {
				continue
			}
			select {
			case chunks <- chunk:
				stats.Chunks++
			case <-gctx.Done():
				return gctx.Err()
			}
			chunk = make([]string, 0, opts.ChunkLines)
		}
		if len(chunk) > 0 {
			select {
			case chunks <- chunk:
				stats.Chunks++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			local := partial{counts: make(Counts)}
			for chunk := range chunks {
				if err := gctx.Err(); err != nil {
					return err
				}
				counts := Count(tokenizer.Stream(slices.Values(chunk), tok))
				for _, n := range counts {
					local.terms += n
				}
				if err := local.counts.Merge(counts); err != nil {
					return err
				}
			}
			partials[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	total := make(Counts)
	for _, p := range partials {
		if err := total.Merge(p.counts); err != nil {
			return nil, stats, err
		}
		stats.Terms += p.terms
	}
	logger.Debug("aggregation complete",
		"workers", opts.Workers,
		"lines", stats.Lines,
		"chunks", stats.Chunks,
		"terms", stats.Terms,
		"distinct", total.Len(),
	)
	return total, stats, nil
}
