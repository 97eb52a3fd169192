package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Pair is one labelled line of a key/value report.
type Pair struct {
	Label string
	Value string
}

// RenderPairs writes data as JSON or YAML, or pairs as a two-column table
// headed by title.
func RenderPairs(w io.Writer, format Format, title string, data any, pairs []Pair, opts ...Option) error {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	switch format {
	case FormatJSON, FormatYAML:
		return encode(w, format, data)
	case FormatTable, "":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	tbl := newTable()
	tbl.SetTitle(headerColor(cfg).Sprint(title))

	for _, p := range pairs {
		tbl.AppendRow(table.Row{p.Label, p.Value})
	}

	if _, err := io.WriteString(w, tbl.Render()+"\n"); err != nil {
		return fmt.Errorf("write table report: %w", err)
	}

	return nil
}
