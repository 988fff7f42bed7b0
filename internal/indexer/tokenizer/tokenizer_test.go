package tokenizer

import (
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func sorted(s Set) []string {
	return slices.Sorted(maps.Keys(s))
}

func TestNGramsShortWords(t *testing.T) {
	grams := NGrams("ab cd ", 3)
	require.Equal(t, []string{"ab", "cd"}, sorted(grams))
}

func TestNGramsShortWordsNoFullWindow(t *testing.T) {
	grams := NGrams("ab cd", 3)
	require.True(t, grams.Contains("ab"))
	for g := range grams {
		require.Less(t, len([]rune(g)), 3, "unexpected full window %q", g)
	}
}

func TestNGramsSlidingWindow(t *testing.T) {
	grams := NGrams("abcdef", 3)
	require.Equal(t, []string{"abc", "bcd", "cde", "def"}, sorted(grams))
}

func TestNGramsTrailingShortWordDropped(t *testing.T) {
	grams := NGrams("hello wo", 3)
	require.False(t, grams.Contains("wo"))
	require.True(t, grams.Contains("hel"))

	grams = NGrams("hello wo\n", 3)
	require.True(t, grams.Contains("wo"))
}

func TestNGramsBoundaryClearsLongWord(t *testing.T) {
	grams := NGrams("hello world", 3)
	require.Equal(t, []string{"ell", "hel", "llo", "orl", "rld", "wor"}, sorted(grams))
}

func TestNGramsCaseFolding(t *testing.T) {
	require.Equal(t, NGrams("abc", 3), NGrams("ABC", 3))
	require.Equal(t, NGrams("Hello World", 3), NGrams("hello world", 3))
}

func TestNGramsDeduplicates(t *testing.T) {
	grams := NGrams("aaaaaa", 3)
	require.Equal(t, []string{"aaa"}, sorted(grams))
}

func TestNGramsControlCharactersSplit(t *testing.T) {
	grams := NGrams("ab\tcd\x00", 3)
	require.Equal(t, []string{"ab", "cd"}, sorted(grams))
}

func TestNGramsMultibyteRunes(t *testing.T) {
	grams := NGrams("検索エンジン", 3)
	require.Equal(t, []string{"エンジ", "ンジン", "検索エ", "索エン"}, sorted(grams))

	grams = NGrams("東京 ", 3)
	require.Equal(t, []string{"東京"}, sorted(grams))
}

func TestNGramsEmpty(t *testing.T) {
	require.Empty(t, NGrams("", 3))
	require.Empty(t, NGrams("   \n\t", 3))
}

func TestNGramsConfigurableLength(t *testing.T) {
	grams := NGrams("abcd x ", 2)
	require.Equal(t, []string{"ab", "bc", "cd", "x"}, sorted(grams))

	grams = NGrams("abc", 0)
	require.Equal(t, []string{"abc"}, sorted(grams))
}
