package shotfile

import "fmt"

// Dataset is a fully materialized n-dimensional array. Data holds the
// elements flattened in row-major order as one of []float64, []int64,
// []uint64, []bool or []string. Shape gives the dimensions; an empty
// shape with a single element denotes a scalar dataset.
type Dataset struct {
	Shape []int
	Data  any
}

// NewDataset builds a Dataset from a Go value, inferring the shape.
// Accepted values: the flat element slices listed on Dataset (shape is
// the slice length) and [][]float64 (shape rows x cols, rows must be
// rectangular).
func NewDataset(value any) (Dataset, error) {
	switch v := value.(type) {
	case Dataset:
		return v, nil
	case []float64:
		return Dataset{Shape: []int{len(v)}, Data: v}, nil
	case []int64:
		return Dataset{Shape: []int{len(v)}, Data: v}, nil
	case []uint64:
		return Dataset{Shape: []int{len(v)}, Data: v}, nil
	case []bool:
		return Dataset{Shape: []int{len(v)}, Data: v}, nil
	case []string:
		return Dataset{Shape: []int{len(v)}, Data: v}, nil
	case [][]float64:
		if len(v) == 0 {
			return Dataset{Shape: []int{0, 0}, Data: []float64{}}, nil
		}
		cols := len(v[0])
		flat := make([]float64, 0, len(v)*cols)
		for i, row := range v {
			if len(row) != cols {
				return Dataset{}, fmt.Errorf("%w: ragged row %d (%d elements, want %d)",
					ErrBadValue, i, len(row), cols)
			}
			flat = append(flat, row...)
		}
		return Dataset{Shape: []int{len(v), cols}, Data: flat}, nil
	default:
		return Dataset{}, fmt.Errorf("%w: %T", ErrBadValue, value)
	}
}

// Len returns the total number of elements.
func (d Dataset) Len() int {
	n := 1
	if len(d.Shape) == 0 {
		switch v := d.Data.(type) {
		case []float64:
			return len(v)
		case []int64:
			return len(v)
		case []uint64:
			return len(v)
		case []bool:
			return len(v)
		case []string:
			return len(v)
		}
		return 0
	}
	for _, dim := range d.Shape {
		n *= dim
	}
	return n
}

// Floats returns the elements converted to float64. String and bool
// datasets are rejected.
func (d Dataset) Floats() ([]float64, error) {
	switch v := d.Data.(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []uint64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: cannot convert %T to float64", ErrBadValue, d.Data)
	}
}

// =============================================================================
// Dataset Options
// =============================================================================

// DatasetOptions collects storage configuration passed through to the
// driver. The analysis layer treats these as opaque: a driver applies
// what its format supports and ignores the rest.
type DatasetOptions struct {
	// Chunks requests a chunked storage layout with the given chunk
	// dimensions.
	Chunks []int

	// Compression requests transparent compression at the given level
	// (0 disables).
	Compression int

	// Attrs are attributes attached to the dataset at creation time.
	Attrs map[string]any
}

// DatasetOption configures dataset creation.
type DatasetOption func(*DatasetOptions)

// WithChunks requests a chunked layout.
func WithChunks(dims ...int) DatasetOption {
	return func(o *DatasetOptions) { o.Chunks = dims }
}

// WithCompression requests compression at the given level.
func WithCompression(level int) DatasetOption {
	return func(o *DatasetOptions) { o.Compression = level }
}

// WithAttrs attaches attributes at creation time.
func WithAttrs(attrs map[string]any) DatasetOption {
	return func(o *DatasetOptions) {
		if o.Attrs == nil {
			o.Attrs = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			o.Attrs[k] = v
		}
	}
}

// ApplyDatasetOptions folds opts into a DatasetOptions for drivers.
func ApplyDatasetOptions(opts []DatasetOption) *DatasetOptions {
	o := &DatasetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
