// Package bloom implements a fixed-capacity Bloom filter used by the
// engine as a visited-set accelerator. It guarantees no false negatives:
// once added, a key always tests as present.
package bloom

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/spaolacci/murmur3"
)

// Filter is a double-hashed Bloom filter over a packed bit array. It is
// not safe for concurrent use; callers serialize access.
type Filter struct {
	bits   *bitset.BitSet
	m      uint32 // number of bits
	k      uint32 // number of hash probes per key
	nAdded uint64
}

// Stats summarizes the filter's current state.
type Stats struct {
	ItemsAdded   uint64
	SizeBits     uint32
	NumHashes    uint32
	MemoryBytes  uint64
	FillRatio    float64
	EstimatedFPR float64
	SetBits      uint64
}

// OptimalParams computes the bit-array size m and hash count k that
// achieve false-positive rate p at capacity n, per the standard Bloom
// filter sizing formulas:
//
//	m = ceil(-n * ln(p) / ln(2)^2)
//	k = ceil((m/n) * ln(2))
func OptimalParams(n uint64, p float64) (m uint32, k uint32) {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	fn := float64(n)
	mf := math.Ceil(-fn * math.Log(p) / (math.Ln2 * math.Ln2))
	kf := math.Ceil((mf / fn) * math.Ln2)
	if kf < 1 {
		kf = 1
	}
	return uint32(mf), uint32(kf)
}

// New builds a filter sized for expectedItems at the given false-positive
// rate.
func New(expectedItems uint64, falsePositiveRate float64) *Filter {
	m, k := OptimalParams(expectedItems, falsePositiveRate)
	return NewWithParams(m, k)
}

// NewWithParams builds a filter with explicit bit count m and hash count k.
func NewWithParams(m, k uint32) *Filter {
	if m == 0 {
		m = 1
	}
	if k == 0 {
		k = 1
	}
	return &Filter{
		bits: bitset.New(uint(m)),
		m:    m,
		k:    k,
	}
}

// hashes computes the k probe indices for key using double hashing:
// h1 = murmur3(x, seed=0), h2 = murmur3(x, seed=h1),
// probe_i = (h1 + i*h2) mod m.
func (f *Filter) hashes(key string) []uint32 {
	b := []byte(key)
	h1 := murmur3.Sum32WithSeed(b, 0)
	h2 := murmur3.Sum32WithSeed(b, h1)

	probes := make([]uint32, f.k)
	for i := uint32(0); i < f.k; i++ {
		probes[i] = (h1 + i*h2) % f.m
	}
	return probes
}

// Add inserts key into the filter.
func (f *Filter) Add(key string) {
	for _, pos := range f.hashes(key) {
		f.bits.Set(uint(pos))
	}
	f.nAdded++
}

// AddBatch inserts many keys in one call.
func (f *Filter) AddBatch(keys []string) {
	for _, k := range keys {
		f.Add(k)
	}
}

// Contains reports whether key may have been added. False positives are
// possible; false negatives are not.
func (f *Filter) Contains(key string) bool {
	for _, pos := range f.hashes(key) {
		if !f.bits.Test(uint(pos)) {
			return false
		}
	}
	return true
}

// ContainsBatch reports membership for each key in order.
func (f *Filter) ContainsBatch(keys []string) []bool {
	out := make([]bool, len(keys))
	for i, k := range keys {
		out[i] = f.Contains(k)
	}
	return out
}

// Stats reports the filter's current occupancy and estimated false-positive
// rate at its current fill level.
func (f *Filter) Stats() Stats {
	setBits := f.bits.Count()
	fillRatio := 0.0
	if f.m > 0 {
		fillRatio = float64(setBits) / float64(f.m)
	}
	estimatedFPR := 0.0
	if f.nAdded > 0 {
		estimatedFPR = math.Pow(fillRatio, float64(f.k))
	}
	return Stats{
		ItemsAdded:   f.nAdded,
		SizeBits:     f.m,
		NumHashes:    f.k,
		MemoryBytes:  uint64((f.m + 7) / 8),
		FillRatio:    fillRatio,
		EstimatedFPR: estimatedFPR,
		SetBits:      uint64(setBits),
	}
}
