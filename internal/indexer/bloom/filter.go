package bloom

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// Hash indexes of two or more are derived from the two keyed base hashes
// modulo this prime.
const derivedModulus = 0xffffffffffffffc5

// Filter is an immutable bitmap built from one set of grams.
type Filter struct {
	bits   *bitset.BitSet
	params Parameters
}

// Build returns the filter for grams under params. The filter holds a copy
// of params so later membership tests use the same hashing.
func Build(grams map[string]struct{}, params Parameters) *Filter {
	f := &Filter{
		bits:   bitset.New(params.Bits),
		params: params,
	}
	h := newHasher(params)
	for g := range grams {
		h.each(g, func(bit uint) {
			f.bits.Set(bit)
		})
	}
	return f
}

// Test reports whether gram may have been inserted. False means definitely
// absent.
func (f *Filter) Test(gram string) bool {
	found := true
	newHasher(f.params).each(gram, func(bit uint) {
		if found && !f.bits.Test(bit) {
			found = false
		}
	})
	return found
}

// TestAll reports whether every gram tests positive.
func (f *Filter) TestAll(grams map[string]struct{}) bool {
	h := newHasher(f.params)
	for g := range grams {
		ok := true
		h.each(g, func(bit uint) {
			if ok && !f.bits.Test(bit) {
				ok = false
			}
		})
		if !ok {
			return false
		}
	}
	return true
}

// IsSet reports whether bit i is set.
func (f *Filter) IsSet(i uint) bool {
	return f.bits.Test(i)
}

// EachSet calls fn for every set bit in ascending order.
func (f *Filter) EachSet(fn func(bit uint)) {
	for i, ok := f.bits.NextSet(0); ok; i, ok = f.bits.NextSet(i + 1) {
		fn(i)
	}
}

// Count returns the number of set bits.
func (f *Filter) Count() uint {
	return f.bits.Count()
}

// Parameters returns the parameters the filter was built with.
func (f *Filter) Parameters() Parameters {
	return f.params
}

type hasher struct {
	params Parameters
	d0, d1 *xxhash.Digest
}

func newHasher(p Parameters) *hasher {
	return &hasher{
		params: p,
		d0:     xxhash.NewWithSeed(p.Seed[0]),
		d1:     xxhash.NewWithSeed(p.Seed[1]),
	}
}

func (h *hasher) sum(d *xxhash.Digest, seed uint64, gram string) uint64 {
	d.ResetWithSeed(seed)
	_, _ = d.WriteString(gram)
	return d.Sum64()
}

// each yields the bit position of every hash function for gram.
func (h *hasher) each(gram string, fn func(bit uint)) {
	if h.params.Bits == 0 {
		return
	}
	m := uint64(h.params.Bits)
	h0 := h.sum(h.d0, h.params.Seed[0], gram)
	h1 := h.sum(h.d1, h.params.Seed[1], gram)
	for i := uint64(0); i < uint64(h.params.Hashes); i++ {
		var v uint64
		switch i {
		case 0:
			v = h0
		case 1:
			v = h1
		default:
			v = (h0 + i*h1) % derivedModulus
		}
		fn(uint(v % m))
	}
}

// Probe holds the bit positions of a gram set under one Parameters value.
// Filters sharing those parameters can be checked against it without
// hashing again.
type Probe struct {
	params    Parameters
	grams     map[string]struct{}
	positions [][]uint
}

// NewProbe hashes every gram in grams under params.
func NewProbe(grams map[string]struct{}, params Parameters) *Probe {
	p := &Probe{
		params:    params,
		grams:     grams,
		positions: make([][]uint, 0, len(grams)),
	}
	h := newHasher(params)
	for g := range grams {
		bits := make([]uint, 0, params.Hashes)
		h.each(g, func(bit uint) {
			bits = append(bits, bit)
		})
		p.positions = append(p.positions, bits)
	}
	return p
}

// Len returns the number of grams in the probe.
func (p *Probe) Len() int {
	return len(p.positions)
}

// Filter returns the filter the probed grams would build.
func (p *Probe) Filter() *Filter {
	f := &Filter{
		bits:   bitset.New(p.params.Bits),
		params: p.params,
	}
	for _, bits := range p.positions {
		for _, b := range bits {
			f.bits.Set(b)
		}
	}
	return f
}

// Matches reports whether every probed gram tests positive in f. An empty
// probe matches nothing.
func (f *Filter) Matches(p *Probe) bool {
	if len(p.positions) == 0 {
		return false
	}
	if f.params != p.params {
		return f.TestAll(p.grams)
	}
	for _, bits := range p.positions {
		for _, b := range bits {
			if !f.IsSet(b) {
				return false
			}
		}
	}
	return true
}
