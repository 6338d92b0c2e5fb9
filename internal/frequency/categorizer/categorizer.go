// Package categorizer assigns frequency bands to ranked entries. Band edges
// are ceil(N·p) for fixed percentiles p; ranks outside every band are dropped
// from the result rather than labelled.
package categorizer

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

// Thresholds are the percentile cut points, each in [0, 1].
type Thresholds struct {
	Popular     float64
	CommonLower float64
	CommonUpper float64
	Rare        float64
}

// DefaultThresholds returns the top 5%, the 5% straddling the median and
// the bottom 5%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Popular:     0.05,
		CommonLower: 0.475,
		CommonUpper: 0.525,
		Rare:        0.95,
	}
}

// Validate checks range and ordering of the cut points.
func (t Thresholds) Validate() error {
	for _, p := range []float64{t.Popular, t.CommonLower, t.CommonUpper, t.Rare} {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("threshold %v outside [0, 1]", p)
		}
	}
	if !(t.Popular <= t.CommonLower && t.CommonLower <= t.CommonUpper && t.CommonUpper <= t.Rare) {
		return fmt.Errorf("thresholds out of order: %+v", t)
	}
	return nil
}

// Band is the half-open rank interval [Lower, Upper) of one category.
type Band struct {
	Category frequency.Category
	Lower    int
	Upper    int
}

// Len returns the number of ranks in the band.
func (b Band) Len() int {
	if b.Upper <= b.Lower {
		return 0
	}
	return b.Upper - b.Lower
}

// Contains reports whether rank falls in the band.
func (b Band) Contains(rank int) bool {
	return rank >= b.Lower && rank < b.Upper
}

// Bounds returns the popular, common and rare bands for n ranked entries.
func Bounds(n int, t Thresholds) []Band {
	return []Band{
		{Category: frequency.CategoryPopular, Lower: 0, Upper: cut(n, t.Popular)},
		{Category: frequency.CategoryCommon, Lower: cut(n, t.CommonLower), Upper: cut(n, t.CommonUpper)},
		{Category: frequency.CategoryRare, Lower: cut(n, t.Rare), Upper: n},
	}
}

// cut computes ceil(n*p) in float64, clamped to [0, n].
func cut(n int, p float64) int {
	c := int(math.Ceil(float64(n) * p))
	if c < 0 {
		return 0
	}
	if c > n {
		return n
	}
	return c
}

// Classify returns the category of rank among n entries, or
// CategoryUncategorized when the rank is in no band.
func Classify(rank, n int, t Thresholds) frequency.Category {
	for _, b := range Bounds(n, t) {
		if b.Contains(rank) {
			return b.Category
		}
	}
	return frequency.CategoryUncategorized
}

// Categorize emits the popular band, then the common band, then the rare
// band, each in rank order. Entries in no band are not emitted.
func Categorize(ranked []frequency.RankedEntry, t Thresholds) []frequency.CategorizedEntry {
	bands := Bounds(len(ranked), t)
	size := 0
	for _, b := range bands {
		size += b.Len()
	}
	out := make([]frequency.CategorizedEntry, 0, size)
	for _, b := range bands {
		for i := b.Lower; i < b.Upper; i++ {
			r := ranked[i]
			out = append(out, frequency.CategorizedEntry{
				Rank:      r.Rank,
				Term:      r.Term,
				Category:  b.Category,
				Frequency: r.Frequency,
			})
		}
	}
	return out
}

// Check verifies that out, produced from n ranked entries, holds exactly the
// banded ranks and that each carries the category Classify gives it.
func Check(out []frequency.CategorizedEntry, n int, t Thresholds) error {
	want := 0
	for _, b := range Bounds(n, t) {
		want += b.Len()
	}
	if len(out) != want {
		return apperrors.Invariantf("categorized %d of %d ranks, bands hold %d", len(out), n, want)
	}
	for _, e := range out {
		if got := Classify(e.Rank, n, t); got != e.Category {
			return apperrors.Invariantf("rank %d labelled %s, bands say %s", e.Rank, e.Category, got)
		}
	}
	return nil
}
