// Package tokenizer turns raw text into the set of character n-grams that
// the bloom filters are built from. Input is lower-cased one rune at a time,
// whitespace and control characters split words, and words shorter than the
// window are kept whole when they are followed by a boundary.
package tokenizer

import (
	"unicode"
)

// DefaultN is the window length used unless the configuration overrides it.
const DefaultN = 3

// Set is a deduplicated collection of grams. Order is irrelevant.
type Set map[string]struct{}

// Contains reports whether gram is a member of the set.
func (s Set) Contains(gram string) bool {
	_, ok := s[gram]
	return ok
}

// NGrams returns every distinct n-rune window of text. A word of 1..n-1
// runes is emitted whole only when a whitespace or control rune follows it;
// a short word at the very end of the input is dropped.
func NGrams(text string, n int) Set {
	if n < 1 {
		n = DefaultN
	}
	grams := make(Set)
	word := make([]rune, 0, n+1)

	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			if len(word) > 0 && len(word) < n {
				grams[string(word)] = struct{}{}
			}
			word = word[:0]
			continue
		}

		word = append(word, unicode.ToLower(r))
		if len(word) > n {
			copy(word, word[1:])
			word = word[:n]
		}
		if len(word) == n {
			grams[string(word)] = struct{}{}
		}
	}
	return grams
}
