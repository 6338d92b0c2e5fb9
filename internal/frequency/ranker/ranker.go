package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

// Rank orders entries by frequency descending, breaking ties by term in
// ascending byte order, and assigns dense ranks starting at 0. The input
// slice is not modified.
func Rank(entries []frequency.CountEntry) ([]frequency.RankedEntry, error) {
	sorted := make([]frequency.CountEntry, len(entries))
	copy(sorted, entries)
	seen := make(map[string]struct{}, len(sorted))
	for _, e := range sorted {
		if e.Frequency < 1 {
			return nil, apperrors.Invariantf("term %q has frequency %d", e.Term, e.Frequency)
		}
		if _, dup := seen[e.Term]; dup {
			return nil, apperrors.Invariantf("term %q counted twice", e.Term)
		}
		seen[e.Term] = struct{}{}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Frequency != sorted[j].Frequency {
			return sorted[i].Frequency > sorted[j].Frequency
		}
		return sorted[i].Term < sorted[j].Term
	})

	ranked := make([]frequency.RankedEntry, len(sorted))
	for i, e := range sorted {
		ranked[i] = frequency.RankedEntry{
			Rank:      i,
			Term:      e.Term,
			Frequency: e.Frequency,
		}
	}
	return ranked, nil
}
