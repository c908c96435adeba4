package spreadsheet

// streaming.go normalizes CSV byte streams before they reach encoding/csv,
// without buffering the whole file:
//
//   - a leading byte order mark is removed (UTF-8, and UTF-16 exports from
//     Excel are transcoded to UTF-8)
//   - invalid UTF-8 sequences are replaced with U+FFFD
//
// CountingReader reports how much of the source has been consumed.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewTextReader wraps r with BOM handling and UTF-8 sanitization.
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader tracks bytes read from the wrapped reader.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64
}

// NewCountingReader wraps r. total may be zero if unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns percent consumed, or 0 when the total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}
