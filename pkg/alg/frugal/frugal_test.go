package frugal_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/frugal"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

const (
	streamLength = 100_000
	domainMax    = 1000
)

// zeroSource makes every power-of-two coin come up zero, so every eligible
// move is taken.
type zeroSource struct{}

func (zeroSource) Uint64() uint64 { return 0 }

func uniformStream(seed uint64, n int) []int {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]int, n)

	for i := range out {
		out[i] = rng.IntN(domainMax) + 1
	}

	return out
}

func TestNew_InvalidTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		h, k int
	}{
		{"zero numerator", 0, 2},
		{"negative numerator", -1, 2},
		{"numerator equals denominator", 2, 2},
		{"numerator exceeds denominator", 3, 2},
		{"zero denominator", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			est, err := frugal.New(tt.h, tt.k, 0)
			require.ErrorIs(t, err, sketch.ErrInvalidConfiguration)
			assert.Nil(t, est)
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := frugal.New(1, 2, 0, frugal.WithStep(0))
	require.ErrorIs(t, err, sketch.ErrInvalidConfiguration)

	_, err = frugal.New(1, 2, 0.0, frugal.WithStep(0.5))
	require.ErrorIs(t, err, sketch.ErrInvalidConfiguration)

	_, err = frugal.New(1, 2, 0, frugal.WithVariant[int]("3u"))
	require.ErrorIs(t, err, sketch.ErrInvalidConfiguration)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	est, err := frugal.New(1, 4, 17)
	require.NoError(t, err)

	assert.Equal(t, 17, est.Estimate())
	assert.Equal(t, 1, est.Step())
	assert.InDelta(t, 0.25, est.Target(), 1e-12)
	assert.Equal(t, frugal.Frugal2U, est.Variant())
}

func TestParseVariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want frugal.Variant
		ok   bool
	}{
		{"", frugal.Frugal2U, true},
		{"1u", frugal.Frugal1U, true},
		{"2U", frugal.Frugal2U, true},
		{" 1U ", frugal.Frugal1U, true},
		{"3u", "", false},
	}

	for _, tt := range tests {
		got, err := frugal.ParseVariant(tt.in)
		if !tt.ok {
			require.ErrorIs(t, err, sketch.ErrInvalidConfiguration, tt.in)

			continue
		}

		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestUpdate_EqualValueIsNoOp(t *testing.T) {
	t.Parallel()

	est, err := frugal.New(1, 2, 5, frugal.WithSource[int](zeroSource{}))
	require.NoError(t, err)

	for range 100 {
		est.Update(5)
	}

	assert.Equal(t, 5, est.Estimate())
	assert.Equal(t, 1, est.Step())
}

func TestUpdate_1UMovesByFixedStep(t *testing.T) {
	t.Parallel()

	est, err := frugal.New(1, 2, 0,
		frugal.WithVariant[int](frugal.Frugal1U),
		frugal.WithStep(3),
		frugal.WithSource[int](zeroSource{}))
	require.NoError(t, err)

	est.Update(100)
	est.Update(100)
	assert.Equal(t, 6, est.Estimate())

	est.Update(0)
	assert.Equal(t, 3, est.Estimate())
	assert.Equal(t, 3, est.Step())

	// A step larger than the gap lands on the observation.
	est.Update(4)
	assert.Equal(t, 4, est.Estimate())
}

func TestUpdate_2UStepAdaptation(t *testing.T) {
	t.Parallel()

	est, err := frugal.New(1, 2, 0, frugal.WithSource[int](zeroSource{}))
	require.NoError(t, err)

	steps := []struct {
		note                  string
		value, estimate, step int
	}{
		{"first move keeps the initial step", 100, 1, 1},
		{"same direction grows the step", 100, 3, 2},
		{"growth continues", 100, 6, 3},
		{"growth continues", 100, 10, 4},
		{"reversal halves the step", 0, 8, 2},
		{"equal value changes nothing", 8, 8, 2},
		{"overshoot clamps to the value", 7, 7, 1},
	}

	for _, s := range steps {
		est.Update(s.value)
		assert.Equal(t, s.estimate, est.Estimate(), s.note)
		assert.Equal(t, s.step, est.Step(), s.note)
	}
}

func TestUpdate_CustomStepFunc(t *testing.T) {
	t.Parallel()

	double := func(step int) int { return step }

	est, err := frugal.New(1, 2, 0,
		frugal.WithStepFunc(double),
		frugal.WithSource[int](zeroSource{}))
	require.NoError(t, err)

	for range 4 {
		est.Update(1 << 20)
	}

	// Steps 1, 2, 4, 8.
	assert.Equal(t, 15, est.Estimate())
	assert.Equal(t, 8, est.Step())
}

func TestUpdate_UnsignedNeverWraps(t *testing.T) {
	t.Parallel()

	est, err := frugal.New[uint8](1, 2, 5,
		frugal.WithStep[uint8](10),
		frugal.WithVariant[uint8](frugal.Frugal1U),
		frugal.WithSource[uint8](zeroSource{}))
	require.NoError(t, err)

	est.Update(0)
	assert.Equal(t, uint8(0), est.Estimate())

	est.Update(255)
	est.Update(255)
	assert.Equal(t, uint8(20), est.Estimate())
}

func TestConvergence_Median(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		variant frugal.Variant
		band    float64
	}{
		{"1U", frugal.Frugal1U, 60},
		{"2U", frugal.Frugal2U, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			est, err := frugal.New(1, 2, 0,
				frugal.WithVariant[int](tt.variant),
				frugal.WithSeed[int](11))
			require.NoError(t, err)

			for _, v := range uniformStream(3, streamLength) {
				est.Update(v)
			}

			t.Logf("%s median estimate=%d", tt.name, est.Estimate())
			assert.InDelta(t, domainMax/2, est.Estimate(), tt.band)
		})
	}
}

func TestConvergence_LowerQuartile(t *testing.T) {
	t.Parallel()

	est, err := frugal.New(1, 4, 0,
		frugal.WithVariant[int](frugal.Frugal1U),
		frugal.WithSeed[int](5))
	require.NoError(t, err)

	for _, v := range uniformStream(8, streamLength) {
		est.Update(v)
	}

	assert.InDelta(t, domainMax/4, est.Estimate(), 60)
}

func TestConvergence_FloatDomain(t *testing.T) {
	t.Parallel()

	est, err := frugal.New(1, 2, 0.0,
		frugal.WithVariant[float64](frugal.Frugal1U),
		frugal.WithSeed[float64](2))
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(4, 5))

	for range streamLength {
		est.Update(rng.Float64() * domainMax)
	}

	assert.InDelta(t, domainMax/2, est.Estimate(), 60)
}

func TestDeterminism(t *testing.T) {
	t.Parallel()

	a, err := frugal.New(1, 2, 0, frugal.WithSeed[int](99))
	require.NoError(t, err)

	b, err := frugal.New(1, 2, 0, frugal.WithSeed[int](99))
	require.NoError(t, err)

	for _, v := range uniformStream(1, 20_000) {
		a.Update(v)
		b.Update(v)

		require.Equal(t, a.Estimate(), b.Estimate())
		require.Equal(t, a.Step(), b.Step())
	}
}
