// Package query answers substring-style queries against a store. The indexed
// strategy walks only the posting lists of the query filter's set bits and
// verifies each candidate once; the linear strategy verifies every stored
// filter and serves as a reference for the indexed one.
package query

import (
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/bloom"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/errors"
)

// Strategy names a candidate selection method.
type Strategy string

const (
	StrategyIndexed Strategy = "indexed"
	StrategyLinear  Strategy = "linear"
)

// ParseStrategy maps a name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyIndexed, "":
		return StrategyIndexed, nil
	case StrategyLinear:
		return StrategyLinear, nil
	default:
		return "", apperrors.Invalidf("unknown strategy %q", name)
	}
}

// Result is the outcome of one query.
type Result struct {
	Strategy   Strategy `json:"strategy"`
	IDs        []string `json:"ids"`
	Grams      int      `json:"grams"`
	Verified   int      `json:"verified"`
	Generation uint64   `json:"generation"`
	Version    uint64   `json:"version"`
}

type outcome uint8

const (
	unresolved outcome = iota
	matched
	rejected
)

// Engine runs queries against one store.
type Engine struct {
	store            *store.Store
	memoizeNegatives bool
	logger           *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMemoizeNegatives controls whether rejected candidates are remembered
// for the rest of a query. Results are the same either way.
func WithMemoizeNegatives(on bool) Option {
	return func(e *Engine) {
		e.memoizeNegatives = on
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		memoizeNegatives: true,
		logger:           slog.Default().With("component", "query-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns the ids of documents whose filter holds every gram of
// text, using the bit-sliced index to pick candidates.
func (e *Engine) Search(text string) (*Result, error) {
	return e.Run(StrategyIndexed, text)
}

// SearchLinear returns the same set as Search by checking every stored
// filter.
func (e *Engine) SearchLinear(text string) (*Result, error) {
	return e.Run(StrategyLinear, text)
}

// Run executes text with the given strategy. It fails with
// ErrEmptyCollection when no document has been added in the current
// generation.
func (e *Engine) Run(strategy Strategy, text string) (*Result, error) {
	var res *Result
	err := e.store.View(func(v *store.View) error {
		params, ok := v.Parameters()
		if !ok {
			return apperrors.ErrEmptyCollection
		}
		grams := tokenizer.NGrams(text, v.NGramSize())
		res = &Result{
			Strategy:   strategy,
			IDs:        []string{},
			Grams:      len(grams),
			Generation: v.Generation(),
			Version:    v.Version(),
		}
		if len(grams) == 0 {
			return nil
		}
		probe := bloom.NewProbe(grams, params)

		var found map[string]struct{}
		switch strategy {
		case StrategyLinear:
			found, res.Verified = linear(v, probe)
		default:
			found, res.Verified = e.indexed(v, probe)
		}
		res.IDs = sortedIDs(found)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("query executed",
		"strategy", strategy,
		"grams", res.Grams,
		"verified", res.Verified,
		"matches", len(res.IDs),
	)
	return res, nil
}

func (e *Engine) indexed(v *store.View, probe *bloom.Probe) (map[string]struct{}, int) {
	found := make(map[string]struct{})
	memo := make(map[uint32]outcome)
	verified := 0
	idx := v.Index()

	probe.Filter().EachSet(func(bit uint) {
		idx.Each(bit, func(ordinal uint32) bool {
			if memo[ordinal] != unresolved {
				return true
			}
			entry := v.Entry(ordinal)
			if _, ok := found[entry.DocumentID]; ok {
				memo[ordinal] = matched
				return true
			}
			verified++
			if entry.Filter.Matches(probe) {
				found[entry.DocumentID] = struct{}{}
				memo[ordinal] = matched
			} else if e.memoizeNegatives {
				memo[ordinal] = rejected
			}
			return true
		})
	})
	return found, verified
}

func linear(v *store.View, probe *bloom.Probe) (map[string]struct{}, int) {
	found := make(map[string]struct{})
	entries := v.Entries()
	for _, entry := range entries {
		if entry.Filter.Matches(probe) {
			found[entry.DocumentID] = struct{}{}
		}
	}
	return found, len(entries)
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
