package shotfile

import (
	"errors"
	"math"
	"testing"
)

func TestNewDataset(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantShape []int
		wantErr   bool
	}{
		{"float slice", []float64{1, 2, 3}, []int{3}, false},
		{"int slice", []int64{7}, []int{1}, false},
		{"string slice", []string{"a", "b"}, []int{2}, false},
		{"matrix", [][]float64{{1, 2}, {3, 4}, {5, 6}}, []int{3, 2}, false},
		{"empty matrix", [][]float64{}, []int{0, 0}, false},
		{"ragged matrix", [][]float64{{1, 2}, {3}}, nil, true},
		{"unsupported type", map[string]int{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := NewDataset(tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrBadValue) {
					t.Fatalf("err = %v, want ErrBadValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDataset: %v", err)
			}
			if len(ds.Shape) != len(tt.wantShape) {
				t.Fatalf("shape = %v, want %v", ds.Shape, tt.wantShape)
			}
			for i := range ds.Shape {
				if ds.Shape[i] != tt.wantShape[i] {
					t.Fatalf("shape = %v, want %v", ds.Shape, tt.wantShape)
				}
			}
		})
	}
}

func TestDatasetLen(t *testing.T) {
	ds, err := NewDataset([][]float64{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.Len(); got != 6 {
		t.Errorf("Len() = %d, want 6", got)
	}
}

func TestDatasetFloats(t *testing.T) {
	ds := Dataset{Shape: []int{3}, Data: []int64{1, 2, 3}}
	got, err := ds.Floats()
	if err != nil {
		t.Fatalf("Floats: %v", err)
	}
	want := []float64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Floats()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := (Dataset{Data: []string{"x"}}).Floats(); !errors.Is(err, ErrBadValue) {
		t.Errorf("string dataset: err = %v, want ErrBadValue", err)
	}
}

func TestDatasetFloatsNaN(t *testing.T) {
	ds := Dataset{Shape: []int{1}, Data: []float64{math.NaN()}}
	got, err := ds.Floats()
	if err != nil {
		t.Fatalf("Floats: %v", err)
	}
	if !math.IsNaN(got[0]) {
		t.Errorf("Floats()[0] = %v, want NaN", got[0])
	}
}
