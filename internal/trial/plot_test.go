package trial_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/streamsketch/internal/trial"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/frugal"
)

func TestRenderTrace(t *testing.T) {
	t.Parallel()

	values, err := trial.UniformValues(500, 100, 1)
	require.NoError(t, err)

	tr, err := trial.FrugalTrace(values, 1, 4, frugal.Frugal2U, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, trial.RenderTrace(&buf, tr))

	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Frugal 2u quantile estimate")
	assert.Contains(t, html, "exact")
}

func TestRenderHistogram(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 0, 50)
	for i := range 50 {
		samples = append(samples, float64(i))
	}

	var buf bytes.Buffer
	require.NoError(t, trial.RenderHistogram(&buf, "Morris estimates", samples, 25))

	assert.Contains(t, buf.String(), "Morris estimates")
}

func TestHistogram(t *testing.T) {
	t.Parallel()

	labels, counts, hit := trial.Histogram([]float64{0, 1, 2, 3, 9}, 2.5, 3)

	require.Len(t, labels, 3)
	require.Len(t, counts, 3)
	assert.InDelta(t, 3.0, counts[0], 0)
	assert.InDelta(t, 1.0, counts[1], 0)
	assert.InDelta(t, 1.0, counts[2], 0)
	assert.Equal(t, 0, hit)
}

func TestHistogram_Degenerate(t *testing.T) {
	t.Parallel()

	labels, counts, hit := trial.Histogram(nil, 1, 5)
	assert.Empty(t, labels)
	assert.Empty(t, counts)
	assert.Equal(t, -1, hit)

	labels, counts, hit = trial.Histogram([]float64{7, 7}, 7, 5)
	assert.Equal(t, []string{"7"}, labels)
	assert.Equal(t, []float64{2}, counts)
	assert.Equal(t, 0, hit)
}

func TestHistogram_EdgesAndMaximum(t *testing.T) {
	t.Parallel()

	// Inner edges at 3 and 6 belong to the upper bin; the maximum lands in the last bin.
	_, counts, hit := trial.Histogram([]float64{0, 3, 6, 9}, 9, 3)

	assert.Equal(t, []float64{1, 1, 2}, counts)
	assert.Equal(t, 2, hit)
}
