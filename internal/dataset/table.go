// Package dataset loads tabular training data from CSV and XLSX files into
// a column-addressable in-memory table.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "paycast/internal/errors"
)

// Table is an in-memory rectangular dataset with named columns. Cells hold
// raw values as read from the source file; numeric interpretation happens
// on access.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// NewTable creates a table from a header row and data rows. Every row must
// have exactly as many cells as the header.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	if len(columns) == 0 {
		return nil, apperrors.NewParsingError("dataset has no columns", nil)
	}

	index := make(map[string]int, len(columns))
	for i, name := range columns {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, apperrors.NewParsingError(fmt.Sprintf("empty column name at position %d", i), nil)
		}
		if _, dup := index[name]; dup {
			return nil, apperrors.NewParsingError(fmt.Sprintf("duplicate column %q", name), nil)
		}
		columns[i] = name
		index[name] = i
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("row %d has %d cells, expected %d", i, len(row), len(columns)), nil)
		}
	}

	return &Table{columns: columns, index: index, rows: rows}, nil
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns the column names in file order
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether a column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the raw cells of a named column
func (t *Table) Column(name string) ([]any, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, apperrors.NewParsingError(fmt.Sprintf("column %q not found", name), nil)
	}
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Floats returns a column parsed as float64. Every cell must parse.
func (t *Table) Floats(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for r, cell := range cells {
		v, err := toFloat(cell)
		if err != nil {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("column %q row %d: %v", name, r, err), err)
		}
		out[r] = v
	}
	return out, nil
}

// Select returns a new table keeping only the rows where keep[i] is true.
// The keep mask must cover every row.
func (t *Table) Select(keep []bool) (*Table, error) {
	if len(keep) != len(t.rows) {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("selection mask covers %d rows, table has %d", len(keep), len(t.rows)), nil)
	}
	var rows [][]any
	for i, row := range t.rows {
		if keep[i] {
			rows = append(rows, row)
		}
	}
	return &Table{columns: t.columns, index: t.index, rows: rows}, nil
}

func toFloat(cell any) (float64, error) {
	switch v := cell.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if s == "" {
			return 0, fmt.Errorf("empty cell")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported cell type %T", cell)
	}
}
