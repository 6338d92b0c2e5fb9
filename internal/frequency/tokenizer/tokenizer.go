// Package tokenizer splits corpus lines into terms. Words are separated by a
// fixed delimiter set; letters are the individual letter runes of those words.
// Terms are never case-folded, stemmed or filtered beyond dropping blank
// fragments.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
)

// Tokenizer yields the terms of a single line in order.
type Tokenizer interface {
	Tokenize(line string) iter.Seq[string]
}

// delimiters is the split set: space , . ; : ? ! " ( ) [ ] { } - _
const delimiters = " ,.;:?!\"()[]{}-_"

func isDelimiter(r rune) bool {
	return r < utf8.RuneSelf && strings.IndexByte(delimiters, byte(r)) >= 0
}

// Words splits on the delimiter set and drops fragments made only of bytes
// <= 0x20. Fragments are emitted untrimmed.
type Words struct{}

func (Words) Tokenize(line string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i := 0; i < len(line); i++ {
			if isDelimiter(rune(line[i])) {
				if start >= 0 {
					if !emitWord(line[start:i], yield) {
						return
					}
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			emitWord(line[start:], yield)
		}
	}
}

func emitWord(fragment string, yield func(string) bool) bool {
	if blank(fragment) {
		return true
	}
	return yield(fragment)
}

// blank reports whether every byte of s is a control character or space
// (<= 0x20). Multi-byte runes never count as blank.
func blank(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > ' ' {
			return false
		}
	}
	return true
}

// Letters emits every letter rune of every word as a one-rune term.
// Digits, symbols and invalid UTF-8 bytes are skipped.
type Letters struct{}

func (Letters) Tokenize(line string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for word := range (Words{}).Tokenize(line) {
			for i, r := range word {
				if r == utf8.RuneError || !unicode.IsLetter(r) {
					continue
				}
				if !yield(word[i : i+utf8.RuneLen(r)]) {
					return
				}
			}
		}
	}
}

// ForKind returns the tokenizer used by the pipeline for kind.
func ForKind(kind frequency.Kind) (Tokenizer, bool) {
	switch kind {
	case frequency.KindWord:
		return Words{}, true
	case frequency.KindLetter:
		return Letters{}, true
	default:
		return nil, false
	}
}

// Stream lazily tokenizes every line of lines, preserving traversal order.
func Stream(lines iter.Seq[string], t Tokenizer) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range lines {
			for term := range t.Tokenize(line) {
				if !yield(term) {
					return
				}
			}
		}
	}
}
