// Package morris provides Morris approximate counters: event counters that
// keep roughly log2(count) in a single small register.
//
// A register holding n is incremented with probability 2^-n, so after N
// events E[2^n - 1] = N. The register is capped at a configured maximum; once
// it reaches that value further increments are silently dropped instead of
// overflowing.
package morris

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/internal/hashutil"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

// MaxRegisterLimit is the largest register ceiling whose estimate still fits
// in a uint64 (2^64 - 1).
const MaxRegisterLimit = 64

// registerBits is the width of the random draw compared against 2^-n.
const registerBits = 64

var _ sketch.Counter = (*Counter)(nil)

type options struct {
	source rand.Source
	seed   uint64
}

// Option configures the random source of a counter.
type Option func(*options)

// WithSeed seeds the default splitmix64 source.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithSource injects a random source. It takes precedence over WithSeed.
func WithSource(src rand.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

func buildRand(opts []Option) *rand.Rand {
	var o options

	for _, opt := range opts {
		opt(&o)
	}

	if o.source == nil {
		o.source = hashutil.NewSource(o.seed)
	}

	return rand.New(o.source)
}

func validateMax(maxRegister uint8) error {
	if maxRegister == 0 || maxRegister > MaxRegisterLimit {
		return fmt.Errorf("%w: morris max register must be in [1, %d], got %d",
			sketch.ErrInvalidConfiguration, MaxRegisterLimit, maxRegister)
	}

	return nil
}

// Counter is a single Morris register. It is not safe for concurrent use.
type Counter struct {
	rng         *rand.Rand
	register    uint8
	maxRegister uint8
}

// New creates a counter whose register saturates at maxRegister.
func New(maxRegister uint8, opts ...Option) (*Counter, error) {
	if err := validateMax(maxRegister); err != nil {
		return nil, err
	}

	return &Counter{
		rng:         buildRand(opts),
		maxRegister: maxRegister,
	}, nil
}

// Increment records one event.
func (c *Counter) Increment() {
	c.register = step(c.rng, c.register, c.maxRegister)
}

// Estimate returns 2^n - 1, the unbiased estimate of the number of events.
func (c *Counter) Estimate() uint64 {
	return decode(c.register)
}

// Register returns the raw register value n.
func (c *Counter) Register() uint8 {
	return c.register
}

// MaxRegister returns the saturation ceiling.
func (c *Counter) MaxRegister() uint8 {
	return c.maxRegister
}

// Saturated reports whether the register has reached its ceiling.
func (c *Counter) Saturated() bool {
	return c.register >= c.maxRegister
}

// Reset sets the register back to zero. The random source keeps its position.
func (c *Counter) Reset() {
	c.register = 0
}

// step applies one probabilistic increment to register n.
func step(rng *rand.Rand, n, maxRegister uint8) uint8 {
	if n >= maxRegister {
		return n
	}

	// The top n bits of a uniform draw are all zero with probability 2^-n.
	if n == 0 || rng.Uint64()>>(registerBits-uint(n)) == 0 {
		return n + 1
	}

	return n
}

func decode(n uint8) uint64 {
	if n >= MaxRegisterLimit {
		return math.MaxUint64
	}

	return uint64(1)<<n - 1
}
