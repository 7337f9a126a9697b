package frame

import (
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Stats summarizes one numeric column: exact count/mean/min/max plus
// sketched quantiles.
type Stats struct {
	Count int64
	Mean  float64
	Min   float64
	Max   float64
	P50   float64
	P90   float64
	P99   float64
}

// Describe computes summary statistics over a numeric column. Non-
// numeric cells and NaNs are skipped; a column with no usable cells
// yields a zero-count Stats. Quantiles are approximate (1% relative
// accuracy).
func (f *Frame) Describe(levels ...string) (Stats, error) {
	cells, err := f.Column(levels...)
	if err != nil {
		return Stats{}, err
	}

	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return Stats{}, fmt.Errorf("create sketch: %w", err)
	}

	stats := Stats{
		Min: math.MaxFloat64,
		Max: -math.MaxFloat64,
	}
	var sum float64
	for _, cell := range cells {
		v, ok := asFloat(cell)
		if !ok || math.IsNaN(v) {
			continue
		}
		stats.Count++
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
		if err := sketch.Add(v); err != nil {
			return Stats{}, fmt.Errorf("add to sketch: %w", err)
		}
	}
	if stats.Count == 0 {
		return Stats{}, nil
	}

	stats.Mean = sum / float64(stats.Count)
	if stats.P50, err = sketch.GetValueAtQuantile(0.50); err != nil {
		return Stats{}, err
	}
	if stats.P90, err = sketch.GetValueAtQuantile(0.90); err != nil {
		return Stats{}, err
	}
	if stats.P99, err = sketch.GetValueAtQuantile(0.99); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
