// Package tugofwar provides the Alon-Matias-Szegedy "tug-of-war" sketch for
// estimating the second frequency moment F2 = sum over items of frequency^2.
//
// Each of depth rows keeps a signed running sum of +-1 projections of the
// items seen. The square of a row sum is an unbiased estimator of F2; the
// sketch reports the mean across rows, so a larger depth lowers variance but
// no single draw carries an error bound.
package tugofwar

import (
	"fmt"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/hashfamily"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

var _ sketch.Moment = (*Sketch)(nil)

// Sketch is a tug-of-war second-moment estimator. It is not safe for
// concurrent use.
type Sketch struct {
	sums   []int64
	family *hashfamily.Family
}

// New creates a sketch with depth independent rows.
func New(depth int, seed uint64, opts ...hashfamily.Option) (*Sketch, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w: tug-of-war depth must be positive, got %d",
			sketch.ErrInvalidConfiguration, depth)
	}

	family, err := hashfamily.New(depth, seed, opts...)
	if err != nil {
		return nil, fmt.Errorf("tugofwar: %w", err)
	}

	return &Sketch{
		sums:   make([]int64, depth),
		family: family,
	}, nil
}

// Depth returns the number of rows.
func (s *Sketch) Depth() int {
	return len(s.sums)
}

// Update records one occurrence of item.
func (s *Sketch) Update(item []byte) {
	d := s.family.Digest(item)

	for row := range s.sums {
		s.sums[row] += s.family.SignOf(d, row)
	}
}

// UpdateCount records count occurrences of item at once. A negative count
// returns sketch.ErrInvalidIncrement and leaves the sketch unchanged.
func (s *Sketch) UpdateCount(item []byte, count int64) error {
	if count < 0 {
		return fmt.Errorf("%w: tug-of-war got %d", sketch.ErrInvalidIncrement, count)
	}

	if count == 0 {
		return nil
	}

	d := s.family.Digest(item)

	for row := range s.sums {
		s.sums[row] += count * s.family.SignOf(d, row)
	}

	return nil
}

// EstimateMoment returns the mean of the squared row sums.
func (s *Sketch) EstimateMoment() float64 {
	var total float64

	for _, sum := range s.sums {
		v := float64(sum)
		total += v * v
	}

	return total / float64(len(s.sums))
}

// Reset zeroes every row sum.
func (s *Sketch) Reset() {
	clear(s.sums)
}
