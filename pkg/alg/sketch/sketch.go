// Package sketch defines the capability contracts and the error taxonomy
// shared by the streaming sketches in pkg/alg.
//
// Sketches are independent value types. None embeds another; seeded hashing
// is composed through hashfamily.Family and randomness through an injected
// math/rand/v2 Source.
package sketch

import "errors"

var (
	// ErrInvalidConfiguration is returned by constructors for non-positive
	// sizes, out-of-range targets or unknown algorithms. No partial object is
	// returned alongside it.
	ErrInvalidConfiguration = errors.New("invalid sketch configuration")

	// ErrInvalidIncrement is returned when a negative increment is applied to
	// a cash-register sketch. The sketch state is unchanged.
	ErrInvalidIncrement = errors.New("increment must be non-negative")
)

// Frequency answers point queries with one-sided error.
type Frequency interface {
	// Update adds increment occurrences of item.
	Update(item []byte, increment int64) error

	// Query returns an estimate that never undercounts item.
	Query(item []byte) uint64
}

// Moment estimates the second frequency moment of a stream.
type Moment interface {
	Update(item []byte)
	EstimateMoment() float64
}

// Counter approximately counts events.
type Counter interface {
	Increment()
	Estimate() uint64
}

// Quantile tracks a running quantile estimate over ordered values.
type Quantile[T any] interface {
	Update(value T)
	Estimate() T
}

// Resetter clears a sketch back to its freshly constructed state.
type Resetter interface {
	Reset()
}
