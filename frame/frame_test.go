package frame

import (
	"errors"
	"reflect"
	"testing"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		[][]string{
			{"sequence"},
			{"run time"},
			{"fit", "amplitude"},
			{"fit", "width"},
		},
		[][]any{
			{"seq_b", "12:00:02", 3.0, 0.4},
			{"seq_a", "12:00:01", 2.5, 0.5},
			{"seq_a", "12:00:00", 1.0, 0.6},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestNewPadsLabels(t *testing.T) {
	f := testFrame(t)
	if f.Levels() != 2 {
		t.Fatalf("Levels = %d, want 2", f.Levels())
	}
	if !reflect.DeepEqual(f.Columns[0], []string{"sequence", ""}) {
		t.Errorf("padded label = %v", f.Columns[0])
	}
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New([][]string{{"a"}, {"b"}}, [][]any{{1}})
	if !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestColumn(t *testing.T) {
	f := testFrame(t)

	t.Run("single level with padding", func(t *testing.T) {
		col, err := f.Column("sequence")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(col, []any{"seq_b", "seq_a", "seq_a"}) {
			t.Errorf("column = %v", col)
		}
	})

	t.Run("multi level", func(t *testing.T) {
		col, err := f.Column("fit", "amplitude")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(col, []any{3.0, 2.5, 1.0}) {
			t.Errorf("column = %v", col)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := f.Column("nope")
		if !errors.Is(err, ErrColumnNotFound) {
			t.Errorf("err = %v, want ErrColumnNotFound", err)
		}
	})
}

func TestSortByIndex(t *testing.T) {
	f := testFrame(t)
	if err := f.SetIndex([]string{"sequence"}, []string{"run time"}); err != nil {
		t.Fatal(err)
	}
	f.SortByIndex()

	col, err := f.Column("fit", "amplitude")
	if err != nil {
		t.Fatal(err)
	}
	// seq_a/12:00:00, seq_a/12:00:01, seq_b/12:00:02
	if !reflect.DeepEqual(col, []any{1.0, 2.5, 3.0}) {
		t.Errorf("sorted amplitudes = %v", col)
	}
}

func TestSortStability(t *testing.T) {
	f, err := New(
		[][]string{{"seq"}, {"order"}},
		[][]any{
			{"a", 1.0},
			{"b", 2.0},
			{"a", 3.0},
			{"b", 4.0},
			{"a", 5.0},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetIndex([]string{"seq"}); err != nil {
		t.Fatal(err)
	}
	f.SortByIndex()

	col, _ := f.Column("order")
	// Equal keys keep their original relative order.
	if !reflect.DeepEqual(col, []any{1.0, 3.0, 5.0, 2.0, 4.0}) {
		t.Errorf("order = %v", col)
	}
}

func TestSortMixedTypes(t *testing.T) {
	f, err := New(
		[][]string{{"key"}, {"v"}},
		[][]any{
			{"z", 1.0},
			{2.0, 2.0},
			{"a", 3.0},
			{1.0, 4.0},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetIndex([]string{"key"}); err != nil {
		t.Fatal(err)
	}
	f.SortByIndex()

	col, _ := f.Column("v")
	// Numerics sort before strings; each kind ordered internally.
	if !reflect.DeepEqual(col, []any{4.0, 2.0, 3.0, 1.0}) {
		t.Errorf("v = %v", col)
	}
}

func TestResetIndex(t *testing.T) {
	f := testFrame(t)
	if err := f.SetIndex([]string{"sequence"}); err != nil {
		t.Fatal(err)
	}
	f.ResetIndex()
	if f.Index != nil {
		t.Error("index not cleared")
	}
	// Sorting a positional frame must not reorder anything.
	f.SortByIndex()
	col, _ := f.Column("fit", "amplitude")
	if !reflect.DeepEqual(col, []any{3.0, 2.5, 1.0}) {
		t.Errorf("positional order disturbed: %v", col)
	}
}

func TestSetIndexMissingColumn(t *testing.T) {
	f := testFrame(t)
	err := f.SetIndex([]string{"sequence"}, []string{"nope"})
	if !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("err = %v, want ErrColumnNotFound", err)
	}
}

func TestFlatName(t *testing.T) {
	tests := []struct {
		label []string
		want  string
	}{
		{[]string{"sequence", ""}, "sequence"},
		{[]string{"fit", "amplitude"}, "fit / amplitude"},
		{[]string{""}, ""},
	}
	for _, tt := range tests {
		if got := flatName(tt.label); got != tt.want {
			t.Errorf("flatName(%v) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
