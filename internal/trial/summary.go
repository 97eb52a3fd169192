// Package trial runs repeated seeded experiments against the sketches and
// summarizes how their estimates scatter around the exact answer.
package trial

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// z95 is the two-sided 95% normal quantile.
const z95 = 1.959963984540054

// Summary describes a sample of estimates against a known truth.
type Summary struct {
	Trials   int     `json:"trials" yaml:"trials"`
	Truth    float64 `json:"truth" yaml:"truth"`
	Mean     float64 `json:"mean" yaml:"mean"`
	StdDev   float64 `json:"stddev" yaml:"stddev"`
	StdErr   float64 `json:"stderr" yaml:"stderr"`
	Median   float64 `json:"median" yaml:"median"`
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	RelError float64 `json:"rel_error" yaml:"rel_error"`
	CILow    float64 `json:"ci_low" yaml:"ci_low"`
	CIHigh   float64 `json:"ci_high" yaml:"ci_high"`
}

// Summarize computes moments, extremes, the median and a normal 95%
// confidence interval for the mean. RelError is |mean-truth|/truth, or the
// absolute error when truth is zero.
func Summarize(samples []float64, truth float64) Summary {
	s := Summary{Trials: len(samples), Truth: truth}
	if len(samples) == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(samples, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}

	s.StdErr = s.StdDev / math.Sqrt(float64(len(samples)))
	s.CILow = s.Mean - z95*s.StdErr
	s.CIHigh = s.Mean + z95*s.StdErr
	s.Min = floats.Min(samples)
	s.Max = floats.Max(samples)

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	s.RelError = math.Abs(s.Mean - truth)
	if truth != 0 {
		s.RelError /= math.Abs(truth)
	}

	return s
}

// Covers reports whether the 95% interval contains the truth.
func (s Summary) Covers() bool {
	return s.CILow <= s.Truth && s.Truth <= s.CIHigh
}
