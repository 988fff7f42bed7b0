// Package store holds the mutable collection state: the ordered sequence of
// document filters, the bit-sliced index over them and the hash parameters
// pinned for the current generation.
package store

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/bitindex"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/bloom"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/config"
)

// Document is the unit of input. IDs are opaque and need not be unique.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Entry is one stored document filter. Its position in the sequence is the
// document's ordinal.
type Entry struct {
	DocumentID string
	Filter     *bloom.Filter
}

// SeedFunc supplies the seed for a new generation.
type SeedFunc func() bloom.Seed

// Option configures a Store.
type Option func(*Store)

// WithSeedFunc overrides how generation seeds are chosen.
func WithSeedFunc(fn SeedFunc) Option {
	return func(s *Store) {
		s.seeds = fn
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store guards entries, index and parameters with one lock so no reader
// sees an entry that is not yet reflected in the index.
type Store struct {
	mu         sync.RWMutex
	cfg        config.BloomConfig
	template   bloom.Parameters
	params     *bloom.Parameters
	entries    []Entry
	index      *bitindex.Index
	generation uint64
	version    uint64
	setBits    uint64
	seeds      SeedFunc
	logger     *slog.Logger
}

// New creates an empty store. The bloom sizing is checked once here; the
// seed is chosen when the first document of a generation arrives.
func New(cfg config.BloomConfig, opts ...Option) (*Store, error) {
	template, err := bloom.NewParameters(cfg.Capacity, cfg.FalsePositiveRate, bloom.Seed{})
	if err != nil {
		return nil, fmt.Errorf("sizing bloom filters: %w", err)
	}
	if cfg.NGramSize < 1 {
		cfg.NGramSize = tokenizer.DefaultN
	}
	s := &Store{
		cfg:      cfg,
		template: template,
		index:    bitindex.New(template.Bits),
		seeds:    configuredSeed(cfg),
		logger:   slog.Default().With("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func configuredSeed(cfg config.BloomConfig) SeedFunc {
	if len(cfg.Seed) == 2 {
		seed := bloom.Seed{cfg.Seed[0], cfg.Seed[1]}
		return func() bloom.Seed { return seed }
	}
	return bloom.RandomSeed
}

// Reset starts a new generation: entries and postings are dropped and the
// pinned parameters are released. Calling it on an empty store is a no-op
// apart from advancing the generation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := len(s.entries)
	s.entries = nil
	s.setBits = 0
	s.index.Rebuild(s.template.Bits)
	s.params = nil
	s.generation++
	s.version++
	s.logger.Info("collection reset",
		"generation", s.generation,
		"dropped_documents", dropped,
		"bits", s.template.Bits,
	)
}

// Add tokenizes and indexes docs in order under the generation's pinned
// parameters, pinning them first if this is the generation's first
// document. Documents appended before a failure stay committed.
func (s *Store) Add(docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(docs) == 0 {
		return nil
	}
	if s.params == nil {
		p := s.template
		p.Seed = s.seeds()
		s.params = &p
		s.logger.Info("hash parameters pinned",
			"generation", s.generation,
			"bits", p.Bits,
			"hashes", p.Hashes,
		)
	}
	params := *s.params

	for i, doc := range docs {
		ordinal := len(s.entries)
		if uint64(ordinal) > uint64(^uint32(0)) {
			return fmt.Errorf("adding document %d of %d (%q): ordinal space exhausted", i+1, len(docs), doc.ID)
		}
		filter := bloom.Build(tokenizer.NGrams(doc.Text, s.cfg.NGramSize), params)
		s.entries = append(s.entries, Entry{DocumentID: doc.ID, Filter: filter})
		s.index.Record(uint32(ordinal), filter)
		s.setBits += uint64(filter.Count())
		s.version++
	}
	s.logger.Debug("documents added",
		"generation", s.generation,
		"batch", len(docs),
		"documents", len(s.entries),
	)
	return nil
}

// View runs fn with read access to a consistent snapshot of the store. The
// view must not be retained after fn returns.
func (s *Store) View(fn func(v *View) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&View{s: s})
}

// Generation returns the number of resets performed so far.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Version changes on every reset and on every document added, so two
// reads with equal versions saw identical contents.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Stats summarises the current generation. FillRatio is the mean share of
// bits set per filter; as it approaches one every filter matches every
// query. DensestPosting is the longest posting list, the worst case number
// of candidates a single query bit can produce.
type Stats struct {
	Generation     uint64  `json:"generation"`
	Version        uint64  `json:"version"`
	Documents      int     `json:"documents"`
	Pinned         bool    `json:"pinned"`
	Bits           uint    `json:"bits"`
	Hashes         uint    `json:"hashes"`
	NGramSize      int     `json:"ngram_size"`
	Postings       uint64  `json:"postings"`
	FillRatio      float64 `json:"fill_ratio"`
	DensestPosting uint64  `json:"densest_posting"`
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Generation: s.generation,
		Version:    s.version,
		Documents:  len(s.entries),
		Pinned:     s.params != nil,
		Bits:       s.template.Bits,
		Hashes:     s.template.Hashes,
		NGramSize:  s.cfg.NGramSize,
		Postings:   s.index.Postings(),
	}
	if st.Documents > 0 && st.Bits > 0 {
		st.FillRatio = float64(s.setBits) / (float64(st.Documents) * float64(st.Bits))
	}
	for bit := range s.index.Len() {
		st.DensestPosting = max(st.DensestPosting, s.index.Cardinality(bit))
	}
	return st
}

// View is read-only access to the store, valid only inside Store.View.
type View struct {
	s *Store
}

// Parameters returns the pinned parameters, or false if none have been
// pinned in this generation.
func (v *View) Parameters() (bloom.Parameters, bool) {
	if v.s.params == nil {
		return bloom.Parameters{}, false
	}
	return *v.s.params, true
}

// NGramSize returns the tokenizer window length.
func (v *View) NGramSize() int {
	return v.s.cfg.NGramSize
}

// Len returns the number of entries.
func (v *View) Len() int {
	return len(v.s.entries)
}

// Entry returns the entry at ordinal.
func (v *View) Entry(ordinal uint32) Entry {
	return v.s.entries[ordinal]
}

// Entries returns the entry sequence. Callers must not modify it.
func (v *View) Entries() []Entry {
	return v.s.entries
}

// Index returns the bit-sliced index.
func (v *View) Index() *bitindex.Index {
	return v.s.index
}

// Generation returns the generation the view belongs to.
func (v *View) Generation() uint64 {
	return v.s.generation
}

// Version returns the store version the view observes.
func (v *View) Version() uint64 {
	return v.s.version
}
