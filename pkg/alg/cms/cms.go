// Package cms provides a Count-Min Sketch for frequency estimation in the
// cash-register stream model.
//
// A Count-Min Sketch estimates the frequency of elements in a data stream
// using bounded overestimation. It answers "how many times has this element
// been seen?" with an estimate that is always >= the true count and exceeds
// it by at most epsilon * totalCount with probability >= 1 - delta, where
// epsilon = e / width and delta = e^-depth.
//
// Row hashing is delegated to a hashfamily.Family seeded at construction, so
// two sketches built with the same width, depth, seed and algorithm evolve
// identically under the same updates.
//
// A Sketch is not safe for concurrent use; callers that share one across
// goroutines must hold a single lock around Update and Query.
package cms

import (
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/hashfamily"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

var _ sketch.Frequency = (*Sketch)(nil)

// Sketch is a Count-Min Sketch over non-negative counts.
type Sketch struct {
	counters   []uint64 // Flattened 2D array: depth rows x width columns.
	family     *hashfamily.Family
	width      uint64
	depth      uint64
	totalCount uint64
	updates    uint64
}

// New creates a sketch with the given width (columns per row) and depth
// (rows, one hash function each). Options configure the hash family.
func New(width, depth int, seed uint64, opts ...hashfamily.Option) (*Sketch, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: cms width must be positive, got %d", sketch.ErrInvalidConfiguration, width)
	}

	if depth <= 0 {
		return nil, fmt.Errorf("%w: cms depth must be positive, got %d", sketch.ErrInvalidConfiguration, depth)
	}

	if width > math.MaxInt/depth {
		return nil, fmt.Errorf("%w: cms width %d x depth %d overflows the counter table",
			sketch.ErrInvalidConfiguration, width, depth)
	}

	family, err := hashfamily.New(depth, seed, opts...)
	if err != nil {
		return nil, fmt.Errorf("cms: %w", err)
	}

	return &Sketch{
		counters: make([]uint64, width*depth),
		family:   family,
		width:    uint64(width),
		depth:    uint64(depth),
	}, nil
}

// NewWithEstimates creates a sketch sized from the desired error bounds.
// Width = ceil(e / epsilon), depth = ceil(ln(1 / delta)). Both epsilon and
// delta must lie in the open interval (0, 1).
func NewWithEstimates(epsilon, delta float64, seed uint64, opts ...hashfamily.Option) (*Sketch, error) {
	if epsilon <= 0 || epsilon >= 1 {
		return nil, fmt.Errorf("%w: cms epsilon must be in (0, 1), got %g", sketch.ErrInvalidConfiguration, epsilon)
	}

	if delta <= 0 || delta >= 1 {
		return nil, fmt.Errorf("%w: cms delta must be in (0, 1), got %g", sketch.ErrInvalidConfiguration, delta)
	}

	w := math.Ceil(math.E / epsilon)
	if w >= math.MaxInt {
		return nil, fmt.Errorf("%w: cms epsilon %g needs more than %d columns",
			sketch.ErrInvalidConfiguration, epsilon, math.MaxInt)
	}

	width := int(w)
	depth := int(math.Ceil(math.Log(1 / delta)))

	return New(width, depth, seed, opts...)
}

// Width returns the number of columns in the sketch.
func (s *Sketch) Width() int {
	return int(s.width)
}

// Depth returns the number of rows (hash functions) in the sketch.
func (s *Sketch) Depth() int {
	return int(s.depth)
}

// Epsilon returns the additive error factor e / width.
func (s *Sketch) Epsilon() float64 {
	return math.E / float64(s.width)
}

// Delta returns the failure probability e^-depth.
func (s *Sketch) Delta() float64 {
	return math.Exp(-float64(s.depth))
}

// Update adds increment to the count of item. A zero increment is a no-op;
// a negative one returns sketch.ErrInvalidIncrement and leaves the sketch
// unchanged.
func (s *Sketch) Update(item []byte, increment int64) error {
	if increment < 0 {
		return fmt.Errorf("%w: cms got %d", sketch.ErrInvalidIncrement, increment)
	}

	if increment == 0 {
		return nil
	}

	d := s.family.Digest(item)
	inc := uint64(increment)

	for row := range s.depth {
		s.counters[s.cell(d, row)] += inc
	}

	s.totalCount += inc
	s.updates++

	return nil
}

// UpdateConservative adds increment to item using the conservative update
// rule: each row counter is raised only as far as min + increment. Estimates
// stay one-sided while collisions inflate counters less than with Update.
func (s *Sketch) UpdateConservative(item []byte, increment int64) error {
	if increment < 0 {
		return fmt.Errorf("%w: cms got %d", sketch.ErrInvalidIncrement, increment)
	}

	if increment == 0 {
		return nil
	}

	d := s.family.Digest(item)
	target := s.minimum(d) + uint64(increment)

	for row := range s.depth {
		idx := s.cell(d, row)
		if s.counters[idx] < target {
			s.counters[idx] = target
		}
	}

	s.totalCount += uint64(increment)
	s.updates++

	return nil
}

// UpdateString is Update for string items.
func (s *Sketch) UpdateString(item string, increment int64) error {
	return s.Update([]byte(item), increment)
}

// Query returns the estimated frequency of item: the minimum of its row
// counters. The estimate is never below the true count.
func (s *Sketch) Query(item []byte) uint64 {
	return s.minimum(s.family.Digest(item))
}

// QueryString is Query for string items.
func (s *Sketch) QueryString(item string) uint64 {
	return s.Query([]byte(item))
}

// TotalCount returns the sum of all increments applied (N in the error bound).
func (s *Sketch) TotalCount() uint64 {
	return s.totalCount
}

// Updates returns the number of non-zero update calls.
func (s *Sketch) Updates() uint64 {
	return s.updates
}

// ErrorBound returns ceil(epsilon * TotalCount), the additive overestimate
// that holds for any single query with probability >= 1 - delta.
func (s *Sketch) ErrorBound() uint64 {
	return uint64(math.Ceil(s.Epsilon() * float64(s.totalCount)))
}

// Reset clears all counters and totals without reallocation. The hash family
// is kept, so a reset sketch behaves like a freshly constructed one.
func (s *Sketch) Reset() {
	clear(s.counters)

	s.totalCount = 0
	s.updates = 0
}

func (s *Sketch) cell(d hashfamily.Digest, row uint64) uint64 {
	return row*s.width + s.family.RangeOf(d, int(row), s.width)
}

func (s *Sketch) minimum(d hashfamily.Digest) uint64 {
	minVal := uint64(math.MaxUint64)

	for row := range s.depth {
		if val := s.counters[s.cell(d, row)]; val < minVal {
			minVal = val
		}
	}

	return minVal
}
