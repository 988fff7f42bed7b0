package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Bloom filters answer membership questions with a bounded false positive
        rate and no false negatives. Slicing the filters by bit position turns a
        query into a walk over a handful of posting lists.`,
	"cjk": strings.Repeat("検索エンジンの索引を作る ", 20),
}

func BenchmarkNGrams(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = NGrams(text, DefaultN)
			}
		})
	}
}

func BenchmarkNGramsVaryingSize(b *testing.B) {
	base := "distributed search bloom filter index "
	for _, size := range []int{10, 100, 1000, 10000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = NGrams(text, DefaultN)
			}
		})
	}
}
