package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Frame is one CSV export held in memory: all values are text, nothing is
// treated as missing.
type Frame struct {
	// Table is the destination table name.
	Table string

	// Headers are the raw header cells as exported.
	Headers []string

	// Columns are the sanitised column names, parallel to Headers.
	Columns []string

	// Rows hold one value per column. Short source rows are padded with ""
	// and long ones truncated to the header width.
	Rows [][]string
}

// Rename is one header that changed during sanitisation.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Renames lists headers whose sanitised form differs from the original.
func (f *Frame) Renames() []Rename {
	var out []Rename
	for i, h := range f.Headers {
		if h != f.Columns[i] {
			out = append(out, Rename{From: h, To: f.Columns[i]})
		}
	}
	return out
}

// ReadCSV parses a CSV export into a Frame for table.
func ReadCSV(table string, r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file, header row required", table)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", table, err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	f := &Frame{
		Table:   table,
		Headers: headers,
		Columns: SanitizeHeaders(headers),
		Rows:    [][]string{},
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read row %d: %w", table, len(f.Rows)+2, err)
		}
		if isBlank(rec) {
			continue
		}
		f.Rows = append(f.Rows, fitWidth(rec, len(headers)))
	}
	return f, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(table, path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return ReadCSV(table, file)
}

func fitWidth(rec []string, width int) []string {
	if len(rec) == width {
		return rec
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if v != "" {
			return false
		}
	}
	return true
}
