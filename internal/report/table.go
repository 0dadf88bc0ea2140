// Package report reshapes the tabular outputs of the workflows and renders
// the quality control report: tables, derived ratios and grouped bar charts.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrShapeMismatch reports tables whose rows or columns do not line up.
var ErrShapeMismatch = errors.New("table shape mismatch")

// SampleHeader is the first header cell of every table written by WriteTable.
const SampleHeader = "# Sample"

// Table is a sample-by-column numeric table. Data[i][j] is the value of
// Columns[j] for Samples[i].
type Table struct {
	Columns []string
	Samples []string
	Data    [][]float64
}

// ReadTable reads a tab-separated table whose first row is the header and
// whose first column holds sample IDs. cols selects data columns by index,
// not counting the sample column; with no cols every column is kept.
func ReadTable(path string, cols ...int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := readTable(f, cols)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

func readTable(r io.Reader, cols []int) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty table")
		}
		return nil, err
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: header has no data columns", ErrShapeMismatch)
	}
	dataHeader := header[1:]

	if len(cols) == 0 {
		cols = make([]int, len(dataHeader))
		for i := range cols {
			cols[i] = i
		}
	}
	t := &Table{Columns: make([]string, len(cols))}
	for i, c := range cols {
		if c < 0 || c >= len(dataHeader) {
			return nil, fmt.Errorf("%w: column %d out of range (%d data columns)", ErrShapeMismatch, c, len(dataHeader))
		}
		t.Columns[i] = dataHeader[c]
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(cols))
		for i, c := range cols {
			v, err := parseValue(rec[c+1])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line, t.Columns[i], err)
			}
			row[i] = v
		}
		t.Samples = append(t.Samples, rec[0])
		t.Data = append(t.Data, row)
	}
	return t, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "nan", "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteTable writes t as a tab-separated file with a "# Sample" header,
// creating the parent folder.
func WriteTable(path string, t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := writeRecords(f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func writeRecords(dst io.Writer, t *Table) error {
	w := csv.NewWriter(dst)
	w.Comma = '\t'
	if err := w.Write(append([]string{SampleHeader}, t.Columns...)); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns)+1)
	for i, s := range t.Samples {
		rec[0] = s
		for j, v := range t.Data[i] {
			rec[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Validate checks that every row has one value per column and one row per sample.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrShapeMismatch)
	}
	if len(t.Data) != len(t.Samples) {
		return fmt.Errorf("%w: %d rows for %d samples", ErrShapeMismatch, len(t.Data), len(t.Samples))
	}
	for i, row := range t.Data {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("%w: row %q has %d values for %d columns", ErrShapeMismatch, t.Samples[i], len(row), len(t.Columns))
		}
	}
	return nil
}

// Rename replaces the column names.
func (t *Table) Rename(names ...string) error {
	if len(names) != len(t.Columns) {
		return fmt.Errorf("%w: %d names for %d columns", ErrShapeMismatch, len(names), len(t.Columns))
	}
	t.Columns = append([]string(nil), names...)
	return nil
}

// Transpose returns the data column-major: one row per column, one value per sample.
func (t *Table) Transpose() [][]float64 {
	out := make([][]float64, len(t.Columns))
	for j := range out {
		out[j] = make([]float64, len(t.Samples))
		for i := range t.Samples {
			out[j][i] = t.Data[i][j]
		}
	}
	return out
}
