package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/bloom"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/config"
)

func testConfig() config.BloomConfig {
	return config.BloomConfig{NGramSize: 3, Capacity: 500, FalsePositiveRate: 0.01}
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(testConfig(), opts...)
	require.NoError(t, err)
	return s
}

func TestNewRejectsBadSizing(t *testing.T) {
	_, err := New(config.BloomConfig{NGramSize: 3, Capacity: 0, FalsePositiveRate: 0.01})
	require.ErrorIs(t, err, bloom.ErrBadCapacity)
}

func TestEmptyAddDoesNotPin(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Add(nil))
	require.NoError(t, s.View(func(v *View) error {
		_, ok := v.Parameters()
		require.False(t, ok)
		require.Equal(t, 0, v.Len())
		return nil
	}))
}

func TestAddPinsOncePerGeneration(t *testing.T) {
	calls := 0
	s := newStore(t, WithSeedFunc(func() bloom.Seed {
		calls++
		return bloom.Seed{uint64(calls), uint64(calls) * 10}
	}))

	require.NoError(t, s.Add([]Document{{ID: "a", Text: "hello world"}}))
	require.NoError(t, s.Add([]Document{{ID: "b", Text: "other text"}, {ID: "c", Text: "more"}}))
	require.Equal(t, 1, calls)

	require.NoError(t, s.View(func(v *View) error {
		p, ok := v.Parameters()
		require.True(t, ok)
		require.Equal(t, bloom.Seed{1, 10}, p.Seed)
		for _, e := range v.Entries() {
			require.Equal(t, p, e.Filter.Parameters())
		}
		return nil
	}))

	s.Reset()
	require.NoError(t, s.Add([]Document{{ID: "d", Text: "fresh"}}))
	require.Equal(t, 2, calls)
	require.NoError(t, s.View(func(v *View) error {
		p, _ := v.Parameters()
		require.Equal(t, bloom.Seed{2, 20}, p.Seed)
		return nil
	}))
}

func TestConfiguredSeed(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = []uint64{5, 6}
	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Add([]Document{{ID: "a", Text: "abc "}}))
	require.NoError(t, s.View(func(v *View) error {
		p, _ := v.Parameters()
		require.Equal(t, bloom.Seed{5, 6}, p.Seed)
		return nil
	}))
}

func TestIndexMatchesFilters(t *testing.T) {
	s := newStore(t)
	docs := []Document{
		{ID: "a", Text: "hello world"},
		{ID: "b", Text: "bloom filters are probabilistic"},
		{ID: "a", Text: "duplicate ids are legal"},
		{ID: "c", Text: ""},
	}
	require.NoError(t, s.Add(docs))

	require.NoError(t, s.View(func(v *View) error {
		require.Equal(t, len(docs), v.Len())
		idx := v.Index()
		p, _ := v.Parameters()
		require.Equal(t, p.Bits, idx.Len())
		for bit := uint(0); bit < idx.Len(); bit++ {
			posted := make(map[uint32]bool)
			for _, o := range idx.Candidates(bit) {
				posted[o] = true
			}
			for o := 0; o < v.Len(); o++ {
				require.Equal(t, v.Entry(uint32(o)).Filter.IsSet(bit), posted[uint32(o)],
					"bit %d ordinal %d", bit, o)
			}
		}
		require.Equal(t, "a", v.Entry(2).DocumentID)
		return nil
	}))
}

func TestResetIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Add([]Document{{ID: "a", Text: "hello"}}))

	s.Reset()
	once := s.Stats()
	s.Reset()
	twice := s.Stats()

	require.Equal(t, once.Documents, twice.Documents)
	require.Equal(t, once.Pinned, twice.Pinned)
	require.Equal(t, once.Postings, twice.Postings)
	require.Equal(t, once.Bits, twice.Bits)
	require.Equal(t, 0, twice.Documents)
	require.False(t, twice.Pinned)
	require.Equal(t, once.Generation+1, twice.Generation)
}

func TestStats(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Add([]Document{{ID: "a", Text: "hello"}, {ID: "b", Text: "world"}}))
	st := s.Stats()
	require.Equal(t, 2, st.Documents)
	require.True(t, st.Pinned)
	require.Equal(t, uint(4800), st.Bits)
	require.Equal(t, uint(7), st.Hashes)
	require.Equal(t, 3, st.NGramSize)
	require.Greater(t, st.Postings, uint64(0))
	require.Equal(t, uint64(2), st.Version)

	var setBits uint64
	require.NoError(t, s.View(func(v *View) error {
		for _, e := range v.Entries() {
			setBits += uint64(e.Filter.Count())
		}
		return nil
	}))
	require.Equal(t, setBits, st.Postings)
	require.InDelta(t, float64(setBits)/(2*4800), st.FillRatio, 1e-12)
	require.GreaterOrEqual(t, st.DensestPosting, uint64(1))
	require.LessOrEqual(t, st.DensestPosting, uint64(2))

	s.Reset()
	st = s.Stats()
	require.Zero(t, st.FillRatio)
	require.Zero(t, st.DensestPosting)
}

func TestDensestPostingCountsSharedBits(t *testing.T) {
	s := newStore(t)
	docs := make([]Document, 5)
	for i := range docs {
		docs[i] = Document{ID: string(rune('a' + i)), Text: "identical text"}
	}
	require.NoError(t, s.Add(docs))
	require.Equal(t, uint64(5), s.Stats().DensestPosting)
}

func TestVersionAdvances(t *testing.T) {
	s := newStore(t)
	v0 := s.Version()
	require.NoError(t, s.Add(nil))
	require.Equal(t, v0, s.Version())

	require.NoError(t, s.Add([]Document{{ID: "a", Text: "abc"}}))
	v1 := s.Version()
	require.Greater(t, v1, v0)

	s.Reset()
	require.Greater(t, s.Version(), v1)
	require.NoError(t, s.View(func(v *View) error {
		require.Equal(t, s.version, v.Version())
		return nil
	}))
}

func TestConcurrentAddAndView(t *testing.T) {
	s := newStore(t)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				doc := Document{ID: fmt.Sprintf("w%d-%d", w, i), Text: fmt.Sprintf("worker %d document %d", w, i)}
				assert.NoError(t, s.Add([]Document{doc}))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = s.View(func(v *View) error {
					n := uint32(v.Len())
					idx := v.Index()
					for bit := uint(0); bit < idx.Len(); bit++ {
						for _, o := range idx.Candidates(bit) {
							if o >= n {
								t.Errorf("ordinal %d visible in index but only %d entries", o, n)
							}
						}
					}
					return nil
				})
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 200, s.Stats().Documents)
}
