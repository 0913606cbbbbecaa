// Package dataset loads the KOI cumulative table export and splits it into
// a feature matrix and a label vector.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrTrainingData marks any failure caused by the source dataset.
var ErrTrainingData = errors.New("training data error")

// Table is a CSV table with named columns and raw string cells.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewTable builds a table from a header and rows. Every row must have one
// cell per column.
func NewTable(header []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(header))
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty column name at position %d", ErrTrainingData, i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrTrainingData, name)
		}
		index[name] = i
		columns[i] = name
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d", ErrTrainingData, i+1, len(row), len(columns))
		}
	}

	return &Table{columns: columns, index: index, rows: rows}, nil
}

// LoadCSV reads a CSV file after skipping skipRows leading lines. The first
// line after the skipped block is the header.
func LoadCSV(path string, skipRows int) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open CSV file: %w", ErrTrainingData, err)
	}
	defer file.Close()

	table, err := ReadCSV(file, skipRows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("skipped_rows", skipRows).
		Int("rows", table.Len()).
		Int("columns", len(table.columns)).
		Msg("CSV data loaded successfully")

	return table, nil
}

// ReadCSV parses a table from r. See LoadCSV.
func ReadCSV(r io.Reader, skipRows int) (*Table, error) {
	br := bufio.NewReader(r)

	for i := 0; i < skipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: file ended after %d of %d metadata rows", ErrTrainingData, i, skipRows)
			}
			return nil, fmt.Errorf("%w: failed to skip metadata rows: %v", ErrTrainingData, err)
		}
	}

	reader := csv.NewReader(br)
	reader.Comment = 0

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing CSV header", ErrTrainingData)
		}
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrTrainingData, err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed CSV record: %v", ErrTrainingData, err)
		}
		rows = append(rows, record)
	}

	return NewTable(header, rows)
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the raw cells of a named column.
func (t *Table) Column(name string) ([]string, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing column %q", ErrTrainingData, name)
	}

	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Drop returns a copy of the table without the named columns. Names that are
// not present are ignored and returned as missing.
func (t *Table) Drop(names ...string) (*Table, []string) {
	drop := make(map[int]bool, len(names))
	var missing []string
	for _, name := range names {
		idx, ok := t.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		drop[idx] = true
	}

	keep := make([]int, 0, len(t.columns)-len(drop))
	for i := range t.columns {
		if !drop[i] {
			keep = append(keep, i)
		}
	}

	out := &Table{
		columns: make([]string, len(keep)),
		index:   make(map[string]int, len(keep)),
		rows:    make([][]string, len(t.rows)),
	}
	for j, i := range keep {
		out.columns[j] = t.columns[i]
		out.index[t.columns[i]] = j
	}
	for r, row := range t.rows {
		nr := make([]string, len(keep))
		for j, i := range keep {
			nr[j] = row[i]
		}
		out.rows[r] = nr
	}

	return out, missing
}
