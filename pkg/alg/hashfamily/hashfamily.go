// Package hashfamily provides a family of independently seeded hash functions
// for the row-based sketches (Count-Min, Tug-of-War).
//
// An item is hashed once with a seeded base algorithm (xxhash by default);
// each member function then derives its value by mixing that base hash with a
// per-row seed through the splitmix64 finalizer. Row seeds come from the
// family seed, so the same seed and algorithm always rebuild the same family.
package hashfamily

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/internal/hashutil"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

// Algorithm names the base hash applied to item bytes.
type Algorithm string

// Supported base hash algorithms.
const (
	XXHash  Algorithm = "xxhash"
	Murmur3 Algorithm = "murmur3"
	FNV1a   Algorithm = "fnv1a"
)

// signBit selects the bit used for the +-1 projection.
const signBit = 63

type baseHasher func(seed uint64, item []byte) uint64

var baseHashers = map[Algorithm]baseHasher{
	XXHash: func(seed uint64, item []byte) uint64 {
		d := xxhash.NewWithSeed(seed)
		_, _ = d.Write(item)

		return d.Sum64()
	},
	Murmur3: func(seed uint64, item []byte) uint64 {
		return murmur3.Sum64WithSeed(item, uint32(seed)^uint32(seed>>32))
	},
	FNV1a: hashutil.FNV64a,
}

// ParseAlgorithm maps a configuration string to an Algorithm.
// The empty string selects XXHash.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return XXHash, nil
	}

	algo := Algorithm(name)
	if _, ok := baseHashers[algo]; !ok {
		return "", fmt.Errorf("%w: unknown hash algorithm %q", sketch.ErrInvalidConfiguration, name)
	}

	return algo, nil
}

// Option configures a Family.
type Option func(*Family)

// WithAlgorithm selects the base hash algorithm.
func WithAlgorithm(algo Algorithm) Option {
	return func(f *Family) {
		f.algo = algo
	}
}

// Digest is the base hash of one item. Computing it once per update and
// deriving every row from it keeps the hot path at one pass over the bytes.
type Digest uint64

// Family is an immutable set of seeded hash functions. It is safe for
// concurrent use.
type Family struct {
	base  baseHasher
	seeds []uint64
	seed  uint64
	algo  Algorithm
}

// New creates count hash functions seeded deterministically from seed.
func New(count int, seed uint64, opts ...Option) (*Family, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: hash family size must be positive, got %d",
			sketch.ErrInvalidConfiguration, count)
	}

	f := &Family{seed: seed, algo: XXHash}

	for _, opt := range opts {
		opt(f)
	}

	algo, err := ParseAlgorithm(string(f.algo))
	if err != nil {
		return nil, err
	}

	f.algo = algo
	f.base = baseHashers[algo]
	f.seeds = hashutil.DeriveSeeds(seed, count)

	return f, nil
}

// Size returns the number of hash functions in the family.
func (f *Family) Size() int {
	return len(f.seeds)
}

// Seed returns the seed the family was built from.
func (f *Family) Seed() uint64 {
	return f.seed
}

// Algorithm returns the base hash algorithm.
func (f *Family) Algorithm() Algorithm {
	return f.algo
}

// Digest computes the base hash of item.
func (f *Family) Digest(item []byte) Digest {
	return Digest(f.base(f.seed, item))
}

// Hash returns the full 64-bit value of function fn for a digest.
func (f *Family) Hash(fn int, d Digest) uint64 {
	return hashutil.MixHash(uint64(d), f.seeds[fn])
}

// RangeOf reduces function fn's value for d into [0, n). n must be positive.
func (f *Family) RangeOf(d Digest, fn int, n uint64) uint64 {
	return f.Hash(fn, d) % n
}

// SignOf returns +1 or -1 from the top bit of function fn's value for d.
func (f *Family) SignOf(d Digest, fn int) int64 {
	if f.Hash(fn, d)>>signBit == 1 {
		return -1
	}

	return 1
}

// HashToRange returns function fn applied to item, reduced into [0, n).
func (f *Family) HashToRange(fn int, item []byte, n uint64) uint64 {
	return f.RangeOf(f.Digest(item), fn, n)
}

// HashToSign returns function fn applied to item as +1 or -1, each with
// probability one half.
func (f *Family) HashToSign(fn int, item []byte) int64 {
	return f.SignOf(f.Digest(item), fn)
}
