package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamsketch/internal/ingest"
	"github.com/Sumatoshi-tech/streamsketch/internal/report"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

const stdinArg = "-"

type ingestFlags struct {
	format    string
	targets   []string
	workers   int
	delimiter string
	noColor   bool
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(global *GlobalFlags) *cobra.Command {
	var flags ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest [files...|-]",
		Short: "Feed line records into the configured sketches and print them",
		Long: `Read records from files (or stdin when no file or "-" is given) and apply
each one to the target sketches.

A record line is "key[<delim>count]"; a numeric key is also the value fed to
frugal quantile sketches. Blank lines and lines starting with # are skipped.
Files ending in .lz4 are decompressed on the fly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, global, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", string(report.FormatTable), "output format: table, json, yaml")
	cmd.Flags().StringSliceVarP(&flags.targets, "targets", "t", nil, "sketch names to feed (default: all)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "concurrent sources (default: ingest.workers)")
	cmd.Flags().StringVarP(&flags.delimiter, "delimiter", "d", "", "key/count delimiter (default: ingest.delimiter)")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored table headers")

	return cmd
}

func runIngest(cmd *cobra.Command, global *GlobalFlags, flags ingestFlags, args []string) error {
	format, err := report.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	rt, err := newRuntime(global, observability.ModeCLI, false)
	if err != nil {
		return err
	}
	defer rt.close()

	workers := rt.cfg.Ingest.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}

	delimiter := rt.cfg.Ingest.Delimiter
	if flags.delimiter != "" {
		delimiter = flags.delimiter
	}

	ctx, span := rt.providers.Tracer.Start(cmd.Context(), "streamsketch.ingest")
	defer span.End()

	stats, runErr := ingest.Run(ctx, rt.reg, flags.targets, sources(cmd, args),
		ingest.WithWorkers(workers),
		ingest.WithDelimiter(delimiter),
		ingest.WithLogger(rt.logger()),
		ingest.WithMetrics(rt.metrics),
	)

	var opts []report.Option
	if flags.noColor {
		opts = append(opts, report.WithNoColor())
	}

	renderErr := report.Render(cmd.OutOrStdout(), format, report.Document{
		Sketches: rt.reg.Snapshot(),
		Ingest:   stats,
	}, opts...)

	if runErr != nil {
		return errors.Join(fmt.Errorf("ingest: %w", runErr), renderErr)
	}

	return renderErr
}

func sources(cmd *cobra.Command, args []string) []ingest.Source {
	if len(args) == 0 {
		return []ingest.Source{ingest.ReaderSource("stdin", cmd.InOrStdin())}
	}

	out := make([]ingest.Source, 0, len(args))

	for _, arg := range args {
		if arg == stdinArg {
			out = append(out, ingest.ReaderSource("stdin", cmd.InOrStdin()))

			continue
		}

		out = append(out, ingest.FileSource(arg))
	}

	return out
}
