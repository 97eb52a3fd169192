package morris_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/morris"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

func TestNewArray_Invalid(t *testing.T) {
	t.Parallel()

	_, err := morris.NewArray(0, defaultMax)
	require.ErrorIs(t, err, sketch.ErrInvalidConfiguration)

	_, err = morris.NewArray(4, 0)
	require.ErrorIs(t, err, sketch.ErrInvalidConfiguration)
}

func TestArray_IndexChecks(t *testing.T) {
	t.Parallel()

	arr, err := morris.NewArray(4, defaultMax)
	require.NoError(t, err)

	assert.Equal(t, 4, arr.Len())

	for _, id := range []int{-1, 4, 100} {
		require.ErrorIs(t, arr.Increment(id), morris.ErrCounterIndex)

		_, err := arr.Estimate(id)
		require.ErrorIs(t, err, morris.ErrCounterIndex)

		_, err = arr.Register(id)
		require.ErrorIs(t, err, morris.ErrCounterIndex)
	}
}

func TestArray_RegistersAreIndependent(t *testing.T) {
	t.Parallel()

	arr, err := morris.NewArray(3, 5, morris.WithSource(constSource(0)))
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, arr.Increment(0))
	}

	for range 10 {
		require.NoError(t, arr.Increment(2))
	}

	r0, err := arr.Register(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), r0)

	r1, err := arr.Register(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), r1)

	est2, err := arr.Estimate(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(31), est2, "register 2 saturates at 5")
}

func TestArray_Expectation(t *testing.T) {
	t.Parallel()

	const (
		size   = 500
		events = 1000
	)

	arr, err := morris.NewArray(size, defaultMax, morris.WithSeed(21))
	require.NoError(t, err)

	for id := range size {
		for range events {
			require.NoError(t, arr.Increment(id))
		}
	}

	var total float64

	for id := range size {
		est, err := arr.Estimate(id)
		require.NoError(t, err)

		total += float64(est)
	}

	// 500 registers give a standard error near 32 (3 percent).
	assert.InEpsilon(t, events, total/size, 0.15)
}

func TestArray_Reset(t *testing.T) {
	t.Parallel()

	arr, err := morris.NewArray(2, defaultMax, morris.WithSource(constSource(0)))
	require.NoError(t, err)

	require.NoError(t, arr.Increment(1))
	arr.Reset()

	r, err := arr.Register(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), r)
}
