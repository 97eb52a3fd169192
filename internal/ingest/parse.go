package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
)

// ErrMalformedLine is returned for a line that is neither a comment nor a
// valid record.
var ErrMalformedLine = errors.New("malformed line")

// ParseLine decodes `key[<delim>count]`. Blank lines and lines starting with
// '#' yield ok=false and no error. Numeric keys follow registry.KeyRecord.
func ParseLine(line, delim string) (rec registry.Record, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return registry.Record{}, false, nil
	}

	key, countText, hasCount := strings.Cut(line, delim)
	key = strings.TrimSpace(key)

	if key == "" {
		return registry.Record{}, false, fmt.Errorf("%w: empty key", ErrMalformedLine)
	}

	rec = registry.KeyRecord(key)

	if hasCount {
		count, parseErr := strconv.ParseInt(strings.TrimSpace(countText), 10, 64)
		if parseErr != nil {
			return registry.Record{}, false, fmt.Errorf("%w: count %q: %w", ErrMalformedLine, countText, parseErr)
		}

		rec.Count = count
	}

	return rec, true, nil
}
