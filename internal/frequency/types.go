// Package frequency holds the value types shared by the term-frequency
// pipeline stages: tokenizer, aggregator, ranker, categorizer and persister.
package frequency

import "fmt"

// Kind identifies an entity kind. Each kind runs its own pipeline and is
// persisted to its own table.
type Kind string

const (
	KindWord   Kind = "word"
	KindLetter Kind = "letter"
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindWord, KindLetter:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

// Category is a frequency band label.
type Category string

const (
	CategoryPopular       Category = "popular"
	CategoryCommon        Category = "common"
	CategoryRare          Category = "rare"
	CategoryUncategorized Category = "uncategorized"
)

// ParseCategory converts a stored label back into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryPopular, CategoryCommon, CategoryRare, CategoryUncategorized:
		return Category(s), nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// CountEntry is one distinct term and its number of occurrences.
type CountEntry struct {
	Term      string `json:"term"`
	Frequency int64  `json:"frequency"`
}

// RankedEntry is a CountEntry placed in the frequency-descending order.
type RankedEntry struct {
	Rank      int    `json:"rank"`
	Term      string `json:"term"`
	Frequency int64  `json:"frequency"`
}

// CategorizedEntry is the persisted record.
type CategorizedEntry struct {
	Rank      int      `json:"rank"`
	Term      string   `json:"term"`
	Category  Category `json:"category"`
	Frequency int64    `json:"frequency"`
}
