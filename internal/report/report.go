// Package report renders sketch snapshots and ingest statistics as a
// terminal table, JSON, or YAML.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/streamsketch/internal/ingest"
	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
	"github.com/Sumatoshi-tech/streamsketch/pkg/config"
)

// Format selects the renderer.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat resolves a format name. The empty string selects FormatTable.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Document is everything a report can show.
type Document struct {
	Sketches []registry.Result `json:"sketches" yaml:"sketches"`
	Ingest   []ingest.Stats    `json:"ingest,omitempty" yaml:"ingest,omitempty"`
}

type options struct {
	noColor bool
}

// Option configures rendering.
type Option func(*options)

// WithNoColor disables header coloring in tables.
func WithNoColor() Option {
	return func(o *options) {
		o.noColor = true
	}
}

// Render writes doc to w in the given format.
func Render(w io.Writer, format Format, doc Document, opts ...Option) error {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	switch format {
	case FormatJSON, FormatYAML:
		return encode(w, format, doc)
	case FormatTable, "":
		return renderTables(w, doc, cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func encode(w io.Writer, format Format, v any) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode JSON report: %w", err)
		}

		return nil
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode YAML report: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode YAML report: %w", err)
	}

	return nil
}

func headerColor(cfg options) *color.Color {
	header := color.New(color.Bold, color.FgCyan)
	if cfg.noColor {
		header.DisableColor()
	} else {
		header.EnableColor()
	}

	return header
}

func renderTables(w io.Writer, doc Document, cfg options) error {
	header := headerColor(cfg)

	parts := []string{sketchTable(doc.Sketches, header)}

	if len(doc.Ingest) > 0 {
		parts = append(parts, statsTable(doc.Ingest, header))
	}

	if _, err := io.WriteString(w, strings.Join(parts, "\n\n")+"\n"); err != nil {
		return fmt.Errorf("write table report: %w", err)
	}

	return nil
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func headerRow(c *color.Color, names ...string) table.Row {
	row := make(table.Row, len(names))
	for i, n := range names {
		row[i] = c.Sprint(n)
	}

	return row
}

func sketchTable(results []registry.Result, header *color.Color) string {
	tbl := newTable()
	tbl.AppendHeader(headerRow(header, "SKETCH", "KIND", "KEY", "ESTIMATE", "RECORDS", "DETAIL"))

	for _, res := range results {
		tbl.AppendRow(table.Row{
			res.Name,
			res.Kind,
			res.Key,
			FormatEstimate(res.Estimate),
			humanize.Comma(clampInt64(res.Records)),
			DescribeDetail(res),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%d sketches", len(results))})

	return tbl.Render()
}

func statsTable(stats []ingest.Stats, header *color.Color) string {
	tbl := newTable()
	tbl.AppendHeader(headerRow(header, "SOURCE", "LINES", "RECORDS", "ERRORS", "BYTES", "DURATION"))

	var records, errs int64

	for _, st := range stats {
		records += st.Records
		errs += st.Errors

		tbl.AppendRow(table.Row{
			st.Source,
			humanize.Comma(st.Lines),
			humanize.Comma(st.Records),
			humanize.Comma(st.Errors),
			humanize.Bytes(uint64(max(st.Bytes, 0))),
			st.Duration.Round(time.Millisecond).String(),
		})
	}

	tbl.AppendFooter(table.Row{"total", "", humanize.Comma(records), humanize.Comma(errs)})

	return tbl.Render()
}

// FormatEstimate prints whole estimates with thousands separators and
// fractional ones with two decimals.
func FormatEstimate(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
		return humanize.Comma(int64(v))
	}

	return humanize.CommafWithDigits(v, 2)
}

// DescribeDetail summarizes kind-specific parameters on one line.
func DescribeDetail(res registry.Result) string {
	d := res.Detail

	switch res.Kind {
	case config.KindCountMin:
		return fmt.Sprintf("%dx%d eps=%.4g delta=%.4g bound=+%s %s",
			d.Depth, d.Width, d.Epsilon, d.Delta, humanize.Comma(clampInt64(d.ErrorBound)), d.Hash)
	case config.KindTugOfWar:
		return fmt.Sprintf("depth=%d %s", d.Depth, d.Hash)
	case config.KindMorris:
		s := fmt.Sprintf("register=%d/%d", d.Register, d.MaxRegister)
		if d.Saturated {
			s += " saturated"
		}

		return s
	case config.KindFrugal:
		return fmt.Sprintf("q=%.3g step=%g %s", d.Target, d.Step, d.Variant)
	default:
		return ""
	}
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}
