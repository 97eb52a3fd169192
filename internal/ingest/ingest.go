// Package ingest feeds line-oriented record streams into registry sketches.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

const (
	defaultWorkers   = 4
	defaultDelimiter = ","

	// maxLineBytes bounds a single record line.
	maxLineBytes = 1 << 20

	// cancelCheckInterval is how many lines pass between context checks.
	cancelCheckInterval = 1024
)

// ErrNoTargets is returned when neither targets nor registry sketches exist.
var ErrNoTargets = errors.New("no target sketches")

// Stats summarizes one source.
type Stats struct {
	Source   string        `json:"source" yaml:"source"`
	Lines    int64         `json:"lines" yaml:"lines"`
	Records  int64         `json:"records" yaml:"records"`
	Errors   int64         `json:"errors" yaml:"errors"`
	Bytes    int64         `json:"bytes" yaml:"bytes"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

type options struct {
	logger    *slog.Logger
	metrics   *observability.SketchMetrics
	delimiter string
	workers   int
}

// Option configures Run.
type Option func(*options)

// WithWorkers bounds how many sources are read at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithDelimiter sets the key/count separator.
func WithDelimiter(d string) Option {
	return func(o *options) {
		if d != "" {
			o.delimiter = d
		}
	}
}

// WithLogger sets the logger for malformed lines and per-source summaries.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records per-source ingest totals.
func WithMetrics(sm *observability.SketchMetrics) Option {
	return func(o *options) {
		o.metrics = sm
	}
}

// Run reads every source concurrently and applies each record to every
// target sketch. Empty targets means all sketches in reg. Malformed lines
// and rejected records are counted and logged; source failures are joined
// into the returned error while other sources keep going. Cancellation of
// ctx stops all sources.
func Run(
	ctx context.Context,
	reg *registry.Registry,
	targets []string,
	sources []Source,
	opts ...Option,
) ([]Stats, error) {
	cfg := options{
		logger:    slog.Default(),
		delimiter: defaultDelimiter,
		workers:   defaultWorkers,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if len(targets) == 0 {
		targets = reg.Names()
	}

	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	for _, name := range targets {
		if _, err := reg.Kind(name); err != nil {
			return nil, err
		}
	}

	stats := make([]Stats, len(sources))

	var (
		mu       sync.Mutex
		failures []error
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.workers)

	for i, src := range sources {
		group.Go(func() error {
			st, err := runSource(gctx, reg, targets, src, &cfg)
			stats[i] = st

			if err == nil {
				return nil
			}

			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			failures = append(failures, fmt.Errorf("source %s: %w", src.Name, err))
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return stats, fmt.Errorf("ingest cancelled: %w", err)
	}

	return stats, errors.Join(failures...)
}

func runSource(
	ctx context.Context,
	reg *registry.Registry,
	targets []string,
	src Source,
	cfg *options,
) (st Stats, err error) {
	start := time.Now()
	st.Source = src.Name

	defer func() {
		st.Duration = time.Since(start)
	}()

	raw, err := src.Open()
	if err != nil {
		return st, err
	}

	defer func() {
		_ = raw.Close()
	}()

	counter := &countingReader{r: decode(src.Name, raw)}

	scanner := bufio.NewScanner(counter)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	for scanner.Scan() {
		st.Lines++

		if st.Lines%cancelCheckInterval == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				st.Bytes = counter.n

				return st, ctxErr
			}
		}

		rec, ok, parseErr := ParseLine(scanner.Text(), cfg.delimiter)
		if parseErr != nil {
			st.Errors++
			cfg.logger.WarnContext(ctx, "skipping malformed line",
				"source", src.Name, "line", st.Lines, "error", parseErr)

			continue
		}

		if !ok {
			continue
		}

		st.Records++

		for _, name := range targets {
			if applyErr := reg.Apply(ctx, name, rec); applyErr != nil {
				st.Errors++
				cfg.logger.DebugContext(ctx, "record rejected",
					"source", src.Name, "line", st.Lines, "sketch", name, "error", applyErr)
			}
		}
	}

	st.Bytes = counter.n

	if cfg.metrics != nil {
		cfg.metrics.RecordIngest(ctx, src.Name, st.Records, st.Errors, st.Bytes)
	}

	cfg.logger.InfoContext(ctx, "source ingested",
		"source", src.Name, "records", st.Records, "errors", st.Errors, "bytes", st.Bytes)

	if scanErr := scanner.Err(); scanErr != nil {
		return st, fmt.Errorf("read: %w", scanErr)
	}

	return st, nil
}
