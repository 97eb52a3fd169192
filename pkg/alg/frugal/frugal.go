// Package frugal provides the frugal streaming quantile estimators of Ma,
// Muthukrishnan and Sandler: a running guess of the h/k-quantile held in one
// (1U) or two (2U) registers and nudged by a biased random walk.
//
// Nothing about the stream is counted. Convergence to the true quantile only
// holds in the limit of many updates drawn from a stationary distribution.
package frugal

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/internal/hashutil"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

// Number is the set of totally ordered numeric domains the estimator tracks.
type Number interface {
	constraints.Integer | constraints.Float
}

// Variant selects the update rule.
type Variant string

const (
	// Frugal1U moves the estimate by a fixed step.
	Frugal1U Variant = "1u"
	// Frugal2U adapts the step: it grows while the walk keeps its direction
	// and shrinks on reversal.
	Frugal2U Variant = "2u"
)

// ParseVariant resolves a variant name. The empty string selects Frugal2U.
func ParseVariant(name string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(name))); v {
	case "":
		return Frugal2U, nil
	case Frugal1U, Frugal2U:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown frugal variant %q", sketch.ErrInvalidConfiguration, name)
	}
}

type direction int8

const (
	down direction = -1
	none direction = 0
	up   direction = 1
)

type config[T Number] struct {
	source   rand.Source
	stepFunc func(T) T
	variant  Variant
	seed     uint64
	step     T
}

// Option configures an Estimator.
type Option[T Number] func(*config[T])

// WithStep sets the initial step. It must be at least 1.
func WithStep[T Number](step T) Option[T] {
	return func(c *config[T]) {
		c.step = step
	}
}

// WithVariant selects the 1U or 2U update rule.
func WithVariant[T Number](v Variant) Option[T] {
	return func(c *config[T]) {
		c.variant = v
	}
}

// WithSeed seeds the default splitmix64 source.
func WithSeed[T Number](seed uint64) Option[T] {
	return func(c *config[T]) {
		c.seed = seed
	}
}

// WithSource injects a random source. It takes precedence over WithSeed.
func WithSource[T Number](src rand.Source) Option[T] {
	return func(c *config[T]) {
		c.source = src
	}
}

// WithStepFunc sets the 2U growth function: while the walk keeps its
// direction the step becomes step + f(step). The default adds one.
func WithStepFunc[T Number](f func(T) T) Option[T] {
	return func(c *config[T]) {
		c.stepFunc = f
	}
}

func addOne[T Number](T) T { return 1 }

// Estimator tracks the h/k-quantile of a stream. It is not safe for
// concurrent use.
type Estimator[T Number] struct {
	rng      *rand.Rand
	stepFunc func(T) T
	variant  Variant
	estimate T
	step     T
	h, k     int
	last     direction
}

var _ sketch.Quantile[int64] = (*Estimator[int64])(nil)

// New creates an estimator of the h/k-quantile starting at initial.
func New[T Number](h, k int, initial T, opts ...Option[T]) (*Estimator[T], error) {
	if h <= 0 || h >= k {
		return nil, fmt.Errorf("%w: frugal target requires 0 < h < k, got h=%d k=%d",
			sketch.ErrInvalidConfiguration, h, k)
	}

	cfg := config[T]{
		variant:  Frugal2U,
		step:     1,
		stepFunc: addOne[T],
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.step < 1 {
		return nil, fmt.Errorf("%w: frugal step must be at least 1, got %v",
			sketch.ErrInvalidConfiguration, cfg.step)
	}

	if cfg.variant != Frugal1U && cfg.variant != Frugal2U {
		return nil, fmt.Errorf("%w: unknown frugal variant %q", sketch.ErrInvalidConfiguration, cfg.variant)
	}

	if cfg.stepFunc == nil {
		cfg.stepFunc = addOne[T]
	}

	if cfg.source == nil {
		cfg.source = hashutil.NewSource(cfg.seed)
	}

	return &Estimator[T]{
		rng:      rand.New(cfg.source),
		stepFunc: cfg.stepFunc,
		variant:  cfg.variant,
		estimate: initial,
		step:     cfg.step,
		h:        h,
		k:        k,
	}, nil
}

// Update feeds one observation.
func (e *Estimator[T]) Update(value T) {
	switch {
	case value > e.estimate:
		if e.rng.IntN(e.k) < e.h {
			e.move(up, value)
		}
	case value < e.estimate:
		if e.rng.IntN(e.k) < e.k-e.h {
			e.move(down, value)
		}
	}
}

func (e *Estimator[T]) move(dir direction, value T) {
	if e.variant == Frugal2U {
		switch e.last {
		case dir:
			e.step += e.stepFunc(e.step)
		case none:
		default:
			e.step = max(e.step/2, 1)
		}

		e.last = dir
	}

	var gap T
	if dir == up {
		gap = value - e.estimate
	} else {
		gap = e.estimate - value
	}

	if gap <= e.step {
		// Land on the observation and drop the overshoot from the step.
		if e.variant == Frugal2U {
			e.step = max(gap, 1)
		}

		e.estimate = value

		return
	}

	if dir == up {
		e.estimate += e.step
	} else {
		e.estimate -= e.step
	}
}

// Estimate returns the current quantile guess.
func (e *Estimator[T]) Estimate() T {
	return e.estimate
}

// Step returns the current step register.
func (e *Estimator[T]) Step() T {
	return e.step
}

// Target returns the tracked quantile fraction h/k.
func (e *Estimator[T]) Target() float64 {
	return float64(e.h) / float64(e.k)
}

// Variant returns the update rule in use.
func (e *Estimator[T]) Variant() Variant {
	return e.variant
}
