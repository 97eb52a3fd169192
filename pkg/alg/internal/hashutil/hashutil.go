// Package hashutil provides shared hash mixing constants, seed derivation and
// a seedable pseudo-random source for the streaming sketches in pkg/alg.
//
// All functions use the splitmix64 finalizer by Vigna (2014) which provides
// full-avalanche mixing across all 64 bits.
package hashutil

import (
	"encoding/binary"
	"hash/fnv"
)

// Splitmix64 constants from the splitmix64 finalizer by Vigna (2014).
const (
	// BaseSeed is folded into every caller seed before derivation.
	BaseSeed = 0x517cc1b727220a95

	// MixShift1 is the first right-shift in the splitmix64 finalizer.
	MixShift1 = 30

	// MixMul1 is the first multiplier in the splitmix64 finalizer.
	MixMul1 = 0xbf58476d1ce4e5b9

	// MixShift2 is the second right-shift in the splitmix64 finalizer.
	MixShift2 = 27

	// MixMul2 is the second multiplier in the splitmix64 finalizer.
	MixMul2 = 0x94d049bb133111eb

	// MixShift3 is the third right-shift in the splitmix64 finalizer.
	MixShift3 = 31

	// splitmix64Increment is the golden-ratio-derived increment
	// used in the Splitmix64 state-advance function.
	splitmix64Increment = 0x9e3779b97f4a7c15
)

// Mix64 applies the splitmix64 finalizer for full-avalanche mixing.
// This is a pure output function: it does NOT advance any state.
func Mix64(v uint64) uint64 {
	v ^= v >> MixShift1
	v *= MixMul1
	v ^= v >> MixShift2
	v *= MixMul2
	v ^= v >> MixShift3

	return v
}

// Splitmix64 advances the state by the golden-ratio increment and applies
// the mix64 finalizer.
func Splitmix64(state uint64) uint64 {
	return Mix64(state + splitmix64Increment)
}

// MixHash combines a base hash with a seed using XOR and the splitmix64 finalizer.
// This produces a deterministic hash variation for a given (base, seed) pair.
func MixHash(base, seed uint64) uint64 {
	return Mix64(base ^ seed)
}

// FNV64a computes a 64-bit FNV-1a hash of data prefixed by the 8-byte
// little-endian encoding of seed.
func FNV64a(seed uint64, data []byte) uint64 {
	var seedBuf [8]byte

	binary.LittleEndian.PutUint64(seedBuf[:], seed)

	h := fnv.New64a()
	_, _ = h.Write(seedBuf[:])
	_, _ = h.Write(data)

	return h.Sum64()
}

// DeriveSeeds creates n deterministic, pairwise distinct-with-overwhelming-
// probability seeds from a caller seed. Equal inputs give equal outputs.
func DeriveSeeds(seed uint64, n int) []uint64 {
	seeds := make([]uint64, n)
	state := seed ^ BaseSeed

	for i := range n {
		state = Splitmix64(state)
		seeds[i] = state
	}

	return seeds
}

// Source is a splitmix64 pseudo-random generator. It satisfies the
// math/rand/v2 Source interface so it can back a *rand.Rand.
// The zero value is usable but every zero-seeded Source yields the same stream.
type Source struct {
	state uint64
}

// NewSource returns a Source seeded with seed.
func NewSource(seed uint64) *Source {
	return &Source{state: seed ^ BaseSeed}
}

// Uint64 returns the next pseudo-random value.
func (s *Source) Uint64() uint64 {
	s.state += splitmix64Increment

	return Mix64(s.state)
}

// Seed resets the generator to the stream identified by seed.
func (s *Source) Seed(seed uint64) {
	s.state = seed ^ BaseSeed
}
