// Package frame models the tabular result snapshots served by the GUI:
// hierarchically labeled columns, row-major cells and an explicit,
// sortable index. It is a snapshot container, not a computation engine;
// analysis beyond indexing, sorting and summary statistics belongs to
// the caller.
package frame

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrColumnNotFound reports a column label with no match.
	ErrColumnNotFound = errors.New("column not found")

	// ErrShape reports rows or labels of inconsistent width.
	ErrShape = errors.New("inconsistent shape")
)

// Key is one index entry: a tuple of typed values, one per index
// column.
type Key []any

// Frame is a tabular snapshot. Column labels are hierarchical: each
// label is a tuple of levels, padded with empty strings to a uniform
// depth. The index holds one key per row; a nil index means positional
// order.
type Frame struct {
	Columns [][]string
	Rows    [][]any
	Index   []Key
}

// New builds a frame, validating that every row has one cell per column
// and padding ragged column labels to a uniform depth.
func New(columns [][]string, rows [][]any) (*Frame, error) {
	depth := 1
	for _, col := range columns {
		if len(col) > depth {
			depth = len(col)
		}
	}
	padded := make([][]string, len(columns))
	for i, col := range columns {
		padded[i] = PadLabel(col, depth)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w",
				i, len(row), len(columns), ErrShape)
		}
	}
	return &Frame{Columns: padded, Rows: rows}, nil
}

// PadLabel extends a column label to depth levels with empty strings.
func PadLabel(label []string, depth int) []string {
	out := make([]string, depth)
	copy(out, label)
	return out
}

// Levels returns the column label depth.
func (f *Frame) Levels() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return len(f.Columns[0])
}

// NumRows returns the row count.
func (f *Frame) NumRows() int { return len(f.Rows) }

// ColumnIndex returns the position of the column with the given label,
// padded to the frame's depth before matching.
func (f *Frame) ColumnIndex(levels ...string) (int, bool) {
	want := PadLabel(levels, f.Levels())
	for i, col := range f.Columns {
		if labelEqual(col, want) {
			return i, true
		}
	}
	return -1, false
}

func labelEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Column returns the cells of one column.
func (f *Frame) Column(levels ...string) ([]any, error) {
	i, ok := f.ColumnIndex(levels...)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, strings.Join(levels, " / "))
	}
	out := make([]any, len(f.Rows))
	for r, row := range f.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// =============================================================================
// Index
// =============================================================================

// SetIndex builds the index from the named columns, which stay in
// place. Every label must resolve to a column.
func (f *Frame) SetIndex(labels ...[]string) error {
	cols := make([]int, len(labels))
	for i, label := range labels {
		idx, ok := f.ColumnIndex(label...)
		if !ok {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, strings.Join(label, " / "))
		}
		cols[i] = idx
	}
	index := make([]Key, len(f.Rows))
	for r, row := range f.Rows {
		key := make(Key, len(cols))
		for i, c := range cols {
			key[i] = row[c]
		}
		index[r] = key
	}
	f.Index = index
	return nil
}

// ResetIndex drops the index, restoring positional order semantics.
func (f *Frame) ResetIndex() {
	f.Index = nil
}

// SortByIndex stably sorts the rows by their index keys. A frame
// without an index is already in positional order and is left alone.
func (f *Frame) SortByIndex() {
	if f.Index == nil {
		return
	}
	order := make([]int, len(f.Rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareKeys(f.Index[order[a]], f.Index[order[b]]) < 0
	})

	rows := make([][]any, len(f.Rows))
	index := make([]Key, len(f.Index))
	for to, from := range order {
		rows[to] = f.Rows[from]
		index[to] = f.Index[from]
	}
	f.Rows = rows
	f.Index = index
}

func compareKeys(a, b Key) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// compareValues orders index cells: numerics together by value, then
// strings, then everything else by formatted form. Mixed kinds order by
// kind so the sort stays total.
func compareValues(a, b any) int {
	ka, fa, sa := valueKey(a)
	kb, fb, sb := valueKey(b)
	if ka != kb {
		return ka - kb
	}
	switch ka {
	case kindNumeric:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	default:
		return strings.Compare(sa, sb)
	}
}

const (
	kindNumeric = iota
	kindString
	kindOther
)

func valueKey(v any) (kind int, num float64, str string) {
	switch x := v.(type) {
	case float64:
		return kindNumeric, x, ""
	case float32:
		return kindNumeric, float64(x), ""
	case int:
		return kindNumeric, float64(x), ""
	case int64:
		return kindNumeric, float64(x), ""
	case uint64:
		return kindNumeric, float64(x), ""
	case bool:
		if x {
			return kindNumeric, 1, ""
		}
		return kindNumeric, 0, ""
	case string:
		return kindString, 0, x
	default:
		return kindOther, 0, fmt.Sprint(v)
	}
}
