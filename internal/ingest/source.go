package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

const lz4Suffix = ".lz4"

// Source is one named input stream.
type Source struct {
	// Name labels stats, logs and metrics. A ".lz4" suffix selects frame
	// decompression.
	Name string
	// Open returns the raw (possibly compressed) stream.
	Open func() (io.ReadCloser, error)
}

// FileSource reads path from disk.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", path, err)
			}

			return f, nil
		},
	}
}

// ReaderSource wraps an already open reader. Closing it is left to the caller.
func ReaderSource(name string, r io.Reader) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
	}
}

// decode wraps raw in an lz4 frame reader when the source name asks for it.
func decode(name string, raw io.Reader) io.Reader {
	if strings.HasSuffix(strings.ToLower(name), lz4Suffix) {
		return lz4.NewReader(raw)
	}

	return raw
}

// countingReader counts bytes after decompression.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)

	return n, err //nolint:wrapcheck // io.EOF must reach bufio unwrapped.
}
