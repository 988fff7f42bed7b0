// Package bloom builds per-document Bloom filters over n-gram sets. Every
// filter in a collection generation shares one Parameters value so that bit
// i refers to the same hash outcome in every document.
package bloom

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	ErrBadCapacity = errors.New("bloom: capacity must be positive")
	ErrBadFPRate   = errors.New("bloom: false positive rate must be in (0, 1)")
)

// Seed is the pair of keys for the two base hash functions.
type Seed [2]uint64

// RandomSeed draws a fresh seed pair.
func RandomSeed() Seed {
	return Seed{rand.Uint64(), rand.Uint64()}
}

// Parameters pins the construction of every filter in a generation.
type Parameters struct {
	Bits   uint
	Hashes uint
	Seed   Seed
}

// BitmapBytes returns the byte length of an optimal bitmap for capacity
// items at the given false positive rate.
func BitmapBytes(capacity int, fpRate float64) int {
	ln2sq := math.Ln2 * math.Ln2
	return int(math.Ceil(float64(capacity) * math.Log(fpRate) / (-8.0 * ln2sq)))
}

// HashCount returns the optimal number of hash functions for a bitmap of
// bits bits holding capacity items.
func HashCount(bits uint, capacity int) uint {
	k := math.Ceil(float64(bits) / float64(capacity) * math.Ln2)
	if k < 1 {
		return 1
	}
	return uint(k)
}

// CheckSizing validates capacity and fpRate.
func CheckSizing(capacity int, fpRate float64) error {
	if capacity <= 0 {
		return ErrBadCapacity
	}
	if !(fpRate > 0 && fpRate < 1) {
		return ErrBadFPRate
	}
	return nil
}

// NewParameters sizes a filter for capacity items at fpRate and binds it to
// seed.
func NewParameters(capacity int, fpRate float64, seed Seed) (Parameters, error) {
	if err := CheckSizing(capacity, fpRate); err != nil {
		return Parameters{}, err
	}
	bits := uint(BitmapBytes(capacity, fpRate)) * 8
	return Parameters{
		Bits:   bits,
		Hashes: HashCount(bits, capacity),
		Seed:   seed,
	}, nil
}

func (p Parameters) String() string {
	return fmt.Sprintf("bits=%d hashes=%d", p.Bits, p.Hashes)
}
