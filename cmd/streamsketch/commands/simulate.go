package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamsketch/internal/report"
	"github.com/Sumatoshi-tech/streamsketch/internal/trial"
	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/frugal"
)

const (
	defaultTrials      = 1000
	defaultMorrisN     = 10_000
	defaultMorrisMax   = 32
	defaultItems       = 10_000
	defaultKeys        = 1000
	defaultZipf        = 1.2
	defaultInstances   = 200
	defaultTugDepth    = 16
	defaultCMSWidth    = 272
	defaultCMSDepth    = 5
	defaultFrugalItems = 100_000
	defaultFrugalMax   = 1000
	plotFileMode       = 0o644
)

// simFlags are shared by every simulate subcommand.
type simFlags struct {
	format  string
	plot    string
	seed    uint64
	noColor bool
}

// NewSimulateCommand creates the simulate command and its per-kind children.
func NewSimulateCommand(global *GlobalFlags) *cobra.Command {
	flags := &simFlags{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run seeded accuracy trials against synthetic streams",
		Long: `Run repeated seeded experiments for a sketch kind and report how its
estimates scatter around the exact answer. --plot writes an HTML chart.`,
	}

	cmd.PersistentFlags().StringVarP(&flags.format, "format", "f", string(report.FormatTable), "output format: table, json, yaml")
	cmd.PersistentFlags().StringVar(&flags.plot, "plot", "", "write an HTML chart to this file")
	cmd.PersistentFlags().Uint64Var(&flags.seed, "seed", 1, "base random seed")
	cmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored table headers")

	cmd.AddCommand(newSimMorrisCommand(global, flags))
	cmd.AddCommand(newSimTugOfWarCommand(global, flags))
	cmd.AddCommand(newSimFrugalCommand(global, flags))
	cmd.AddCommand(newSimCountMinCommand(global, flags))

	return cmd
}

func newSimMorrisCommand(global *GlobalFlags, flags *simFlags) *cobra.Command {
	var (
		n, trials   int
		maxRegister uint8
	)

	cmd := &cobra.Command{
		Use:   "morris",
		Short: "Count n events on many Morris counters and compare the mean with n",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := plainLogger(cmd.ErrOrStderr(), global)
			logger.Debug("morris trial", "n", n, "trials", trials, "max_register", maxRegister)

			samples, err := trial.MorrisSamples(n, trials, maxRegister, flags.seed)
			if err != nil {
				return err
			}

			if flags.plot != "" {
				if err := writePlot(flags.plot, func(w io.Writer) error {
					return trial.RenderHistogram(w, "Morris counter estimates", samples, float64(n))
				}); err != nil {
					return err
				}
			}

			return renderSummary(cmd.OutOrStdout(), flags, "Morris counter", trial.Summarize(samples, float64(n)), nil)
		},
	}

	cmd.Flags().IntVarP(&n, "events", "n", defaultMorrisN, "events per counter")
	cmd.Flags().IntVar(&trials, "trials", defaultTrials, "independent counters")
	cmd.Flags().Uint8Var(&maxRegister, "max-register", defaultMorrisMax, "register ceiling in [1, 64]")

	return cmd
}

func newSimTugOfWarCommand(global *GlobalFlags, flags *simFlags) *cobra.Command {
	var (
		items, keys, instances, depth int
		zipf                          float64
	)

	cmd := &cobra.Command{
		Use:   "tugofwar",
		Short: "Estimate F2 of a Zipf stream with many tug-of-war sketches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := plainLogger(cmd.ErrOrStderr(), global)
			logger.Debug("tug-of-war trial", "items", items, "keys", keys, "instances", instances, "depth", depth)

			stream, err := trial.ZipfStream(items, keys, zipf, flags.seed)
			if err != nil {
				return err
			}

			samples, err := trial.TugOfWarSamples(stream, instances, depth, flags.seed)
			if err != nil {
				return err
			}

			exact := trial.ExactF2(stream)

			if flags.plot != "" {
				if err := writePlot(flags.plot, func(w io.Writer) error {
					return trial.RenderHistogram(w, "Tug-of-war F2 estimates", samples, exact)
				}); err != nil {
					return err
				}
			}

			return renderSummary(cmd.OutOrStdout(), flags, "Tug-of-war F2", trial.Summarize(samples, exact), nil)
		},
	}

	cmd.Flags().IntVar(&items, "items", defaultItems, "stream length")
	cmd.Flags().IntVar(&keys, "keys", defaultKeys, "distinct keys")
	cmd.Flags().Float64Var(&zipf, "zipf", defaultZipf, "Zipf exponent (> 1)")
	cmd.Flags().IntVar(&instances, "instances", defaultInstances, "independent sketches")
	cmd.Flags().IntVar(&depth, "depth", defaultTugDepth, "rows per sketch")

	return cmd
}

func newSimFrugalCommand(global *GlobalFlags, flags *simFlags) *cobra.Command {
	var (
		items, upper, h, k int
		variant            string
	)

	cmd := &cobra.Command{
		Use:   "frugal",
		Short: "Track a quantile of uniform values and compare with the exact one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := plainLogger(cmd.ErrOrStderr(), global)

			v, err := frugal.ParseVariant(variant)
			if err != nil {
				return err
			}

			logger.Debug("frugal trial", "items", items, "h", h, "k", k, "variant", string(v))

			values, err := trial.UniformValues(items, upper, flags.seed)
			if err != nil {
				return err
			}

			tr, err := trial.FrugalTrace(values, h, k, v, flags.seed)
			if err != nil {
				return err
			}

			if flags.plot != "" {
				if err := writePlot(flags.plot, func(w io.Writer) error {
					return trial.RenderTrace(w, tr)
				}); err != nil {
					return err
				}
			}

			summary := trial.Summarize([]float64{tr.Final()}, tr.Truth)

			return renderSummary(cmd.OutOrStdout(), flags, "Frugal "+string(v)+" quantile", tr, []report.Pair{
				{Label: "quantile", Value: strconv.FormatFloat(tr.Target, 'g', -1, 64)},
				{Label: "exact", Value: humanize.Ftoa(tr.Truth)},
				{Label: "estimate", Value: humanize.Ftoa(tr.Final())},
				{Label: "ddsketch (1%)", Value: humanize.FtoaWithDigits(tr.Reference, 2)},
				{Label: "rel. error", Value: percent(summary.RelError)},
				{Label: "items", Value: humanize.Comma(int64(items))},
			})
		},
	}

	cmd.Flags().IntVar(&items, "items", defaultFrugalItems, "stream length")
	cmd.Flags().IntVar(&upper, "max", defaultFrugalMax, "values are uniform in [1, max]")
	cmd.Flags().IntVar(&h, "h", 1, "quantile numerator")
	cmd.Flags().IntVar(&k, "k", 2, "quantile denominator")
	cmd.Flags().StringVar(&variant, "variant", string(frugal.Frugal2U), "1u or 2u")

	return cmd
}

func newSimCountMinCommand(global *GlobalFlags, flags *simFlags) *cobra.Command {
	var (
		items, keys, width, depth int
		zipf                      float64
	)

	cmd := &cobra.Command{
		Use:   "countmin",
		Short: "Measure Count-Min overestimation on a Zipf stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := plainLogger(cmd.ErrOrStderr(), global)
			logger.Debug("count-min trial", "items", items, "keys", keys, "width", width, "depth", depth)

			stream, err := trial.ZipfStream(items, keys, zipf, flags.seed)
			if err != nil {
				return err
			}

			rep, err := trial.CountMinAccuracy(stream, width, depth, flags.seed)
			if err != nil {
				return err
			}

			if flags.plot != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "--plot is not supported for countmin")
			}

			return renderSummary(cmd.OutOrStdout(), flags, "Count-Min overestimate", rep, []report.Pair{
				{Label: "bound (eps*N)", Value: humanize.Comma(int64(rep.Bound))},
				{Label: "within bound", Value: percent(rep.WithinBound)},
				{Label: "mean overestimate", Value: humanize.Ftoa(rep.Overestimate.Mean)},
				{Label: "max overestimate", Value: humanize.Ftoa(rep.Overestimate.Max)},
				{Label: "undercounts", Value: strconv.Itoa(rep.Undercounts)},
				{Label: "distinct keys", Value: humanize.Comma(int64(rep.Overestimate.Trials))},
			})
		},
	}

	cmd.Flags().IntVar(&items, "items", defaultItems, "stream length")
	cmd.Flags().IntVar(&keys, "keys", defaultKeys, "distinct keys")
	cmd.Flags().Float64Var(&zipf, "zipf", defaultZipf, "Zipf exponent (> 1)")
	cmd.Flags().IntVar(&width, "width", defaultCMSWidth, "counters per row")
	cmd.Flags().IntVar(&depth, "depth", defaultCMSDepth, "rows")

	return cmd
}

// renderSummary prints data; when pairs is nil and data is a trial.Summary
// the standard summary lines are used for the table.
func renderSummary(w io.Writer, flags *simFlags, title string, data any, pairs []report.Pair) error {
	format, err := report.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	if s, ok := data.(trial.Summary); ok && pairs == nil {
		pairs = summaryPairs(s)
	}

	var opts []report.Option
	if flags.noColor {
		opts = append(opts, report.WithNoColor())
	}

	return report.RenderPairs(w, format, title, data, pairs, opts...)
}

func summaryPairs(s trial.Summary) []report.Pair {
	return []report.Pair{
		{Label: "trials", Value: humanize.Comma(int64(s.Trials))},
		{Label: "exact", Value: humanize.Ftoa(s.Truth)},
		{Label: "mean", Value: humanize.FormatFloat("#,###.##", s.Mean)},
		{Label: "median", Value: humanize.FormatFloat("#,###.##", s.Median)},
		{Label: "stddev", Value: humanize.FormatFloat("#,###.##", s.StdDev)},
		{Label: "95% CI", Value: fmt.Sprintf("[%s, %s]",
			humanize.FormatFloat("#,###.##", s.CILow), humanize.FormatFloat("#,###.##", s.CIHigh))},
		{Label: "rel. error", Value: percent(s.RelError)},
		{Label: "min / max", Value: humanize.Ftoa(s.Min) + " / " + humanize.Ftoa(s.Max)},
	}
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

func writePlot(path string, render func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, plotFileMode)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	if err := render(f); err != nil {
		_ = f.Close()

		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close plot: %w", err)
	}

	return nil
}
