package trial

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/DataDog/sketches-go/ddsketch"
	"gonum.org/v1/gonum/stat"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/cms"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/frugal"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/morris"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/tugofwar"
)

const (
	// maxTracePoints bounds the length of a recorded trajectory.
	maxTracePoints = 1000
	// referenceAccuracy is the relative accuracy of the DDSketch baseline.
	referenceAccuracy = 0.01
)

// MorrisExpectation counts n events on each of trials independently seeded
// counters and summarizes their estimates against n.
func MorrisExpectation(n, trials int, maxRegister uint8, seed uint64) (Summary, error) {
	samples, err := MorrisSamples(n, trials, maxRegister, seed)
	if err != nil {
		return Summary{}, err
	}

	return Summarize(samples, float64(n)), nil
}

// MorrisSamples returns the estimate of each counter; counter i is seeded
// with seed+i.
func MorrisSamples(n, trials int, maxRegister uint8, seed uint64) ([]float64, error) {
	if n < 0 || trials <= 0 {
		return nil, fmt.Errorf("%w: morris trial needs n >= 0 and trials > 0", sketch.ErrInvalidConfiguration)
	}

	samples := make([]float64, trials)

	for i := range trials {
		c, err := morris.New(maxRegister, morris.WithSeed(seed+uint64(i)))
		if err != nil {
			return nil, err
		}

		for range n {
			c.Increment()
		}

		samples[i] = float64(c.Estimate())
	}

	return samples, nil
}

// TugOfWarUnbiasedness feeds stream into instances sketches with distinct
// seeds and summarizes their F2 estimates against the exact F2.
func TugOfWarUnbiasedness(stream [][]byte, instances, depth int, seed uint64) (Summary, error) {
	samples, err := TugOfWarSamples(stream, instances, depth, seed)
	if err != nil {
		return Summary{}, err
	}

	return Summarize(samples, ExactF2(stream)), nil
}

// TugOfWarSamples returns the F2 estimate of each sketch; sketch i is
// seeded with seed+i.
func TugOfWarSamples(stream [][]byte, instances, depth int, seed uint64) ([]float64, error) {
	if instances <= 0 {
		return nil, fmt.Errorf("%w: tug-of-war trial needs instances > 0", sketch.ErrInvalidConfiguration)
	}

	samples := make([]float64, instances)

	for i := range instances {
		sk, err := tugofwar.New(depth, seed+uint64(i))
		if err != nil {
			return nil, err
		}

		for _, item := range stream {
			sk.Update(item)
		}

		samples[i] = sk.EstimateMoment()
	}

	return samples, nil
}

// CountMinReport describes per-key overestimation of one sketch.
type CountMinReport struct {
	// Overestimate summarizes estimate minus true count over distinct keys.
	Overestimate Summary `json:"overestimate" yaml:"overestimate"`
	// Bound is epsilon times the stream length.
	Bound uint64 `json:"bound" yaml:"bound"`
	// WithinBound is the fraction of keys whose error is at most Bound.
	WithinBound float64 `json:"within_bound" yaml:"within_bound"`
	// Undercounts must be zero.
	Undercounts int `json:"undercounts" yaml:"undercounts"`
}

// CountMinAccuracy feeds stream into one sketch and compares every distinct
// key's estimate with its exact count.
func CountMinAccuracy(stream [][]byte, width, depth int, seed uint64) (CountMinReport, error) {
	sk, err := cms.New(width, depth, seed)
	if err != nil {
		return CountMinReport{}, err
	}

	exact := make(map[string]uint64)

	for _, item := range stream {
		if err := sk.Update(item, 1); err != nil {
			return CountMinReport{}, err
		}

		exact[string(item)]++
	}

	rep := CountMinReport{Bound: sk.ErrorBound()}
	errs := make([]float64, 0, len(exact))
	within := 0

	for key, truth := range exact {
		est := sk.QueryString(key)
		if est < truth {
			rep.Undercounts++

			continue
		}

		diff := est - truth
		if diff <= rep.Bound {
			within++
		}

		errs = append(errs, float64(diff))
	}

	rep.Overestimate = Summarize(errs, 0)

	if len(exact) > 0 {
		rep.WithinBound = float64(within) / float64(len(exact))
	}

	return rep, nil
}

// Trace is the trajectory of a quantile estimate over a stream.
type Trace struct {
	Steps     []int     `json:"steps" yaml:"steps"`
	Estimates []float64 `json:"estimates" yaml:"estimates"`
	Truth     float64   `json:"truth" yaml:"truth"`
	Reference float64   `json:"reference" yaml:"reference"`
	Target    float64   `json:"target" yaml:"target"`
	Variant   string    `json:"variant" yaml:"variant"`
}

// Final returns the last recorded estimate.
func (t Trace) Final() float64 {
	if len(t.Estimates) == 0 {
		return 0
	}

	return t.Estimates[len(t.Estimates)-1]
}

// FrugalTrace runs one estimator over values, starting at zero, recording
// at most maxTracePoints evenly spaced estimates (always including the
// last). Truth is the exact empirical h/k-quantile of values; Reference is
// the same quantile read from a DDSketch with 1% relative accuracy.
func FrugalTrace(values []float64, h, k int, variant frugal.Variant, seed uint64) (Trace, error) {
	est, err := frugal.New(h, k, 0.0,
		frugal.WithVariant[float64](variant),
		frugal.WithSeed[float64](seed))
	if err != nil {
		return Trace{}, err
	}

	ref, err := ddsketch.NewDefaultDDSketch(referenceAccuracy)
	if err != nil {
		return Trace{}, fmt.Errorf("reference sketch: %w", err)
	}

	tr := Trace{Target: est.Target(), Variant: string(variant)}
	every := max(1, len(values)/maxTracePoints)

	for i, v := range values {
		est.Update(v)

		// DDSketch rejects values outside its indexable range; those only
		// affect the baseline.
		_ = ref.Add(v)

		if (i+1)%every == 0 || i == len(values)-1 {
			tr.Steps = append(tr.Steps, i+1)
			tr.Estimates = append(tr.Estimates, est.Estimate())
		}
	}

	if len(values) > 0 {
		sorted := slices.Clone(values)
		slices.Sort(sorted)
		tr.Truth = stat.Quantile(tr.Target, stat.Empirical, sorted, nil)

		if q, qerr := ref.GetValueAtQuantile(tr.Target); qerr == nil {
			tr.Reference = q
		}
	}

	return tr, nil
}

// ExactF2 is the sum of squared item frequencies.
func ExactF2(stream [][]byte) float64 {
	counts := make(map[string]float64)
	for _, item := range stream {
		counts[string(item)]++
	}

	var f2 float64
	for _, c := range counts {
		f2 += c * c
	}

	return f2
}

// ZipfStream draws n keys "k<i>" from a Zipf(s) law over keys items. The
// exponent must exceed 1.
func ZipfStream(n, keys int, s float64, seed uint64) ([][]byte, error) {
	if n < 0 || keys <= 0 || !(s > 1) {
		return nil, fmt.Errorf("%w: zipf stream needs n >= 0, keys > 0 and s > 1, got n=%d keys=%d s=%g",
			sketch.ErrInvalidConfiguration, n, keys, s)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	zipf := rand.NewZipf(rng, s, 1, uint64(keys-1))

	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte("k" + strconv.FormatUint(zipf.Uint64(), 10))
	}

	return out, nil
}

// UniformValues draws n integers uniformly from [1, upper] as floats.
func UniformValues(n, upper int, seed uint64) ([]float64, error) {
	if n < 0 || upper <= 0 {
		return nil, fmt.Errorf("%w: uniform values need n >= 0 and upper > 0, got n=%d upper=%d",
			sketch.ErrInvalidConfiguration, n, upper)
	}

	rng := rand.New(rand.NewPCG(seed, seed+1))

	out := make([]float64, n)
	for i := range out {
		out[i] = float64(rng.IntN(upper) + 1)
	}

	return out, nil
}
