package trial

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	fullZoomPct   = 100
	histogramBins = 30
	binLabelPrec  = 4
)

// RenderTrace writes an HTML line chart of a quantile trajectory with the
// exact quantile and the DDSketch baseline drawn as flat series.
func RenderTrace(w io.Writer, tr Trace) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Frugal %s quantile estimate", tr.Variant),
			Subtitle: fmt.Sprintf("q=%.3g exact=%g ddsketch=%.4g final=%g", tr.Target, tr.Truth, tr.Reference, tr.Final()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Items"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Value"}),
	)

	labels := make([]string, len(tr.Steps))
	estimates := make([]opts.LineData, len(tr.Steps))
	truth := make([]opts.LineData, len(tr.Steps))
	reference := make([]opts.LineData, len(tr.Steps))

	for i, s := range tr.Steps {
		labels[i] = strconv.Itoa(s)
		estimates[i] = opts.LineData{Value: tr.Estimates[i]}
		truth[i] = opts.LineData{Value: tr.Truth}
		reference[i] = opts.LineData{Value: tr.Reference}
	}

	line.SetXAxis(labels)
	line.AddSeries("estimate", estimates, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.AddSeries("exact", truth, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.AddSeries("ddsketch", reference, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render trace: %w", err)
	}

	return nil
}

// RenderHistogram writes an HTML bar chart of the distribution of samples.
// The bin holding truth is highlighted.
func RenderHistogram(w io.Writer, title string, samples []float64, truth float64) error {
	labels, counts, hit := histogram(samples, truth, histogramBins)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d trials, exact=%g", len(samples), truth),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Estimate"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Trials"}),
	)
	bar.SetXAxis(labels)

	data := make([]opts.BarData, len(counts))

	for i, c := range counts {
		data[i] = opts.BarData{Value: c}
		if i == hit {
			data[i].ItemStyle = &opts.ItemStyle{Color: "#ee6666"}
		}
	}

	bar.AddSeries("trials", data)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}

	return nil
}

// histogram bins samples into n equal-width buckets spanning the samples
// and truth. It returns bucket labels, counts and the index of the bucket
// containing truth.
func histogram(samples []float64, truth float64, n int) ([]string, []float64, int) {
	if len(samples) == 0 {
		return nil, nil, -1
	}

	lo := math.Min(floats.Min(samples), truth)
	hi := math.Max(floats.Max(samples), truth)

	if hi == lo {
		return []string{strconv.FormatFloat(lo, 'g', binLabelPrec, 64)}, []float64{float64(len(samples))}, 0
	}

	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)

	// stat.Histogram treats the last divider as exclusive.
	dividers[n] = math.Nextafter(dividers[n], math.Inf(1))

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	counts := stat.Histogram(nil, dividers, sorted, nil)

	labels := make([]string, n)
	hit := -1

	for i := range n {
		labels[i] = strconv.FormatFloat(dividers[i], 'g', binLabelPrec, 64)
		if dividers[i] <= truth && truth < dividers[i+1] {
			hit = i
		}
	}

	return labels, counts, hit
}
