// Package bitindex implements a bit-sliced inverted index: one posting list
// per Bloom filter bit position, each holding the ordinals of the documents
// whose filter has that bit set.
package bitindex

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmap is the read side of a document filter needed to record it.
type Bitmap interface {
	EachSet(fn func(bit uint))
}

// Index is append-only within a generation. It is not safe for concurrent
// use; the owning store serialises access.
type Index struct {
	postings []*roaring.Bitmap
	total    uint64
}

// New returns an index with bitLength empty posting lists.
func New(bitLength uint) *Index {
	idx := &Index{}
	idx.Rebuild(bitLength)
	return idx
}

// Rebuild discards all postings and allocates bitLength empty lists.
func (idx *Index) Rebuild(bitLength uint) {
	idx.postings = make([]*roaring.Bitmap, bitLength)
	for i := range idx.postings {
		idx.postings[i] = roaring.New()
	}
	idx.total = 0
}

// Record appends ordinal to the posting list of every set bit in b. Bits
// beyond the index length are ignored.
func (idx *Index) Record(ordinal uint32, b Bitmap) {
	b.EachSet(func(bit uint) {
		if bit >= uint(len(idx.postings)) {
			return
		}
		if idx.postings[bit].CheckedAdd(ordinal) {
			idx.total++
		}
	})
}

// Candidates returns the ascending ordinals recorded for bit.
func (idx *Index) Candidates(bit uint) []uint32 {
	if bit >= uint(len(idx.postings)) {
		return nil
	}
	return idx.postings[bit].ToArray()
}

// Each calls fn with every ordinal recorded for bit, in ascending order,
// until fn returns false.
func (idx *Index) Each(bit uint, fn func(ordinal uint32) bool) {
	if bit >= uint(len(idx.postings)) {
		return
	}
	it := idx.postings[bit].Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			return
		}
	}
}

// Cardinality returns the length of the posting list for bit.
func (idx *Index) Cardinality(bit uint) uint64 {
	if bit >= uint(len(idx.postings)) {
		return 0
	}
	return idx.postings[bit].GetCardinality()
}

// Len returns the number of posting lists.
func (idx *Index) Len() uint {
	return uint(len(idx.postings))
}

// Postings returns the total number of stored ordinals across all lists.
func (idx *Index) Postings() uint64 {
	return idx.total
}
