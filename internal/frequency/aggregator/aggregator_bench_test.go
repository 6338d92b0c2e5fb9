package aggregator

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/tokenizer"
)

func benchCorpus(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d of the benchmark corpus, with term%d and term%d repeated", i, i%97, i%13)
	}
	return lines
}

func BenchmarkCountLines(b *testing.B) {
	lines := benchCorpus(20000)
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := CountLines(context.Background(), slices.Values(lines), tokenizer.Words{}, Options{Workers: workers, ChunkLines: 512}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkMerge(b *testing.B) {
	left := Count(tokenizer.Stream(slices.Values(benchCorpus(5000)), tokenizer.Words{}))
	right := Count(tokenizer.Stream(slices.Values(benchCorpus(5000)), tokenizer.Words{}))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		acc := make(Counts, left.Len())
		_ = acc.Merge(left)
		_ = acc.Merge(right)
	}
}
