// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package artifact

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DateFormat is the layout used for date-only cells such as forecast days.
const DateFormat = "2006-01-02"

// Table is an in-memory CSV table. Cells are formatted as rows are
// appended; the first formatting error is kept and reported on write.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	err error
}

// NewTable creates an empty table with the given file name and header.
func NewTable(name string, header ...string) *Table {
	return &Table{Name: name, Header: header}
}

// Append formats values and adds them as a row. Supported cell types are
// string, int, int64, float64, bool, time.Time and fmt.Stringer.
func (t *Table) Append(values ...any) {
	if t.err != nil {
		return
	}
	row := len(t.Rows)
	if len(values) != len(t.Header) {
		t.err = fmt.Errorf("artifact %s: row %d has %d cells, header has %d", t.Name, row, len(values), len(t.Header))
		return
	}
	cells := make([]string, len(values))
	for i, v := range values {
		cell, err := formatCell(v)
		if err != nil {
			t.err = &CellError{Table: t.Name, Row: row, Column: t.Header[i], Err: err}
			return
		}
		cells[i] = cell
	}
	t.Rows = append(t.Rows, cells)
}

// Err returns the first error encountered while appending rows.
func (t *Table) Err() error {
	return t.err
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a header column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func formatCell(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("%w: %v", ErrNonFinite, x)
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(DateFormat), nil
		}
		return x.UTC().Format(time.RFC3339), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", v)
	}
}
