package csvsource

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// utf8BOM is written by spreadsheet exports on Windows.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FormatError reports a header or row that does not match the expected shape.
type FormatError struct {
	Path string
	// Line is the 1-based line in the file; the header is line 1.
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

// Unwrap exposes both the cause and pgload.ErrInvalidFormat to errors.Is.
func (e *FormatError) Unwrap() []error {
	return []error{pgload.ErrInvalidFormat, e.Err}
}

// Reader yields RawInstitution rows from a CSV source.
type Reader struct {
	path   string
	closer io.Closer
	csv    *csv.Reader
	dec    *csvutil.Decoder
	rows   int
}

// Open opens path and validates its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w: %w", path, pgload.ErrSourceUnreadable, err)
	}

	r, err := newReader(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads CSV from src. name is used in error messages only.
func NewReader(name string, src io.Reader) (*Reader, error) {
	return newReader(name, src)
}

func newReader(name string, src io.Reader) (*Reader, error) {
	cr := csv.NewReader(skipBOM(src))

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &FormatError{Path: name, Line: 1, Err: errors.New("file is empty, header row required")}
		}
		return nil, wrapReadError(name, 1, err)
	}

	if missing := missingColumns(dec.Header()); len(missing) > 0 {
		return nil, &FormatError{
			Path: name,
			Line: 1,
			Err:  fmt.Errorf("header is missing required columns: %s", strings.Join(missing, ", ")),
		}
	}

	if dup := duplicateColumns(dec.Header()); len(dup) > 0 {
		return nil, &FormatError{
			Path: name,
			Line: 1,
			Err:  fmt.Errorf("header repeats columns: %s", strings.Join(dup, ", ")),
		}
	}

	return &Reader{path: name, csv: cr, dec: dec}, nil
}

// Next decodes the next row. It returns io.EOF after the last row.
func (r *Reader) Next() (pgload.RawInstitution, error) {
	var raw pgload.RawInstitution
	if err := r.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return pgload.RawInstitution{}, io.EOF
		}
		return pgload.RawInstitution{}, wrapReadError(r.path, r.rows+2, err)
	}
	r.rows++
	return raw, nil
}

// Rows returns the number of data rows decoded so far.
func (r *Reader) Rows() int {
	return r.rows
}

// Header returns the header row as read from the file.
func (r *Reader) Header() []string {
	return r.dec.Header()
}

// Close releases the underlying file, if the Reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func wrapReadError(path string, fallbackLine int, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		line := pe.StartLine
		if line == 0 {
			line = pe.Line
		}
		return &FormatError{Path: path, Line: line, Err: pe.Err}
	}

	var de *csvutil.DecodeError
	if errors.As(err, &de) {
		return &FormatError{Path: path, Line: fallbackLine, Err: err}
	}

	return fmt.Errorf("failed to read %s: %w: %w", path, pgload.ErrSourceUnreadable, err)
}

func missingColumns(header []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range pgload.Columns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// duplicateColumns returns header names that appear more than once.
func duplicateColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	var dup []string
	for _, h := range header {
		seen[h]++
		if seen[h] == 2 {
			dup = append(dup, h)
		}
	}
	return dup
}

func skipBOM(src io.Reader) io.Reader {
	br := bufio.NewReader(src)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
