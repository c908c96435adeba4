// Package spreadsheet reads tabular files into header-keyed records of raw
// cell text. No type coercion happens here; every value stays a string.
//
// The first row is the header row. Supported formats are .xlsx and .xlsm
// (first worksheet) and .csv.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// ErrMalformedSpreadsheet is returned for unreadable or unsupported files.
var ErrMalformedSpreadsheet = errors.New("malformed spreadsheet")

// Record maps a header to its raw cell text.
type Record map[string]string

// Sheet is a fully read spreadsheet.
type Sheet struct {
	Headers []string
	Records []Record
}

// rowSource yields raw rows one at a time. next returns io.EOF when done.
type rowSource interface {
	next() ([]string, error)
	close() error
}

// Headers returns the normalized header row of the file at path.
func Headers(path string) ([]string, error) {
	src, err := open(path)
	if err != nil {
		return nil, err
	}
	defer src.close()

	row, err := src.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []string{}, nil
		}
		return nil, malformed(path, err)
	}
	return normalizeHeaders(row), nil
}

// Read returns every non-blank data row of the file at path.
func Read(path string) (*Sheet, error) {
	src, err := open(path)
	if err != nil {
		return nil, err
	}
	defer src.close()

	first, err := src.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Sheet{Headers: []string{}, Records: []Record{}}, nil
		}
		return nil, malformed(path, err)
	}

	sheet := &Sheet{Headers: normalizeHeaders(first), Records: []Record{}}
	for {
		row, err := src.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(path, err)
		}
		if isBlank(row) {
			continue
		}

		rec := make(Record, len(sheet.Headers))
		for i, h := range sheet.Headers {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		sheet.Records = append(sheet.Records, rec)
	}

	slog.Debug("spreadsheet read",
		"file", filepath.Base(path),
		"columns", len(sheet.Headers),
		"rows", len(sheet.Records),
	)
	return sheet, nil
}

// open returns an error matching fs.ErrNotExist, not ErrMalformedSpreadsheet,
// when nothing is stored at path.
func open(path string) (rowSource, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return openWorkbook(path)
	case ".csv":
		return openCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrMalformedSpreadsheet, filepath.Ext(path))
	}
}

func malformed(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedSpreadsheet, filepath.Base(path), err)
}

// workbookSource iterates the first worksheet of an Excel workbook.
type workbookSource struct {
	file *excelize.File
	rows *excelize.Rows
}

func openWorkbook(path string) (*workbookSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, malformed(path, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, malformed(path, errors.New("workbook has no sheets"))
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, malformed(path, err)
	}
	return &workbookSource{file: f, rows: rows}, nil
}

func (s *workbookSource) next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns()
}

func (s *workbookSource) close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}

// csvSource streams a CSV file through the text normalizing reader.
type csvSource struct {
	file    *os.File
	counter *CountingReader
	reader  *csv.Reader
}

func openCSV(path string) (*csvSource, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	if err != nil {
		return nil, malformed(path, err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	counter := NewCountingReader(f, size)
	r := csv.NewReader(NewTextReader(counter))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	return &csvSource{file: f, counter: counter, reader: r}, nil
}

func (s *csvSource) next() ([]string, error) {
	return s.reader.Read()
}

func (s *csvSource) close() error {
	slog.Debug("csv closed", "bytes_read", s.counter.BytesRead, "progress", s.counter.Progress())
	return s.file.Close()
}

// normalizeHeaders trims and NFC-normalizes header cells, names blank
// headers by position and disambiguates duplicates with a numeric suffix.
func normalizeHeaders(row []string) []string {
	headers := make([]string, len(row))
	used := make(map[string]bool, len(row))
	nextSuffix := make(map[string]int)

	for i, cell := range row {
		h := norm.NFC.String(strings.TrimSpace(cell))
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}

		if used[h] {
			base := h
			n := max(nextSuffix[base], 1)
			for used[base+"."+strconv.Itoa(n)] {
				n++
			}
			h = base + "." + strconv.Itoa(n)
			nextSuffix[base] = n + 1
		}
		used[h] = true
		headers[i] = h
	}
	return headers
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
