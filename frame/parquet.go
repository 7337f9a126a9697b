package frame

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// LevelSeparator joins hierarchical column levels into the flat column
// names used in parquet files.
const LevelSeparator = " / "

// flatName flattens a column label, dropping trailing empty padding
// levels.
func flatName(label []string) string {
	end := len(label)
	for end > 0 && label[end-1] == "" {
		end--
	}
	if end == 0 {
		return ""
	}
	name := label[0]
	for _, level := range label[1:end] {
		name += LevelSeparator + level
	}
	return name
}

func splitName(name string) []string {
	return strings.Split(name, LevelSeparator)
}

// columnNode picks the parquet node for a column from its first
// non-nil cell. Columns of mixed or unknown content degrade to strings.
func (f *Frame) columnNode(col int) parquet.Node {
	for _, row := range f.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case float64, float32:
			return parquet.Leaf(parquet.DoubleType)
		case int, int64, uint64:
			return parquet.Leaf(parquet.Int64Type)
		case bool:
			return parquet.Leaf(parquet.BooleanType)
		default:
			return parquet.String()
		}
	}
	return parquet.String()
}

func cellForParquet(v any, node parquet.Node) any {
	if v == nil {
		return nil
	}
	switch node.Type().Kind() {
	case parquet.Double:
		switch x := v.(type) {
		case float64:
			return x
		case float32:
			return float64(x)
		case int64:
			return float64(x)
		}
	case parquet.Int64:
		switch x := v.(type) {
		case int:
			return int64(x)
		case int64:
			return x
		case uint64:
			return int64(x)
		}
	case parquet.Boolean:
		if x, ok := v.(bool); ok {
			return x
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// WriteParquetFile exports the frame to a parquet file with flattened
// column names. The index is not persisted; re-derive it with SetIndex
// after reading.
func (f *Frame) WriteParquetFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	fields := parquet.Group{}
	nodes := make([]parquet.Node, len(f.Columns))
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		nodes[i] = f.columnNode(i)
		names[i] = flatName(col)
		fields[names[i]] = parquet.Optional(nodes[i])
	}
	schema := parquet.NewSchema("frame", fields)

	w := parquet.NewGenericWriter[map[string]any](file, schema,
		parquet.Compression(&parquet.Zstd))

	rows := make([]map[string]any, len(f.Rows))
	for r, row := range f.Rows {
		out := make(map[string]any, len(row))
		for i, cell := range row {
			if v := cellForParquet(cell, nodes[i]); v != nil {
				out[names[i]] = v
			}
		}
		rows[r] = out
	}
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			file.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return file.Close()
}

// ReadParquetFile loads a frame from a parquet file written by
// WriteParquetFile, splitting flattened names back into levels. Row
// order and cell values round-trip; the column order is the file's
// schema order.
func ReadParquetFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[map[string]any](file)
	defer reader.Close()

	fields := reader.Schema().Fields()
	names := make([]string, len(fields))
	columns := make([][]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name()
		columns[i] = splitName(field.Name())
	}

	records := make([]map[string]any, reader.NumRows())
	for i := range records {
		records[i] = map[string]any{}
	}
	n, err := reader.Read(records)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	rows := make([][]any, n)
	for r := 0; r < n; r++ {
		row := make([]any, len(names))
		for i, name := range names {
			row[i] = records[r][name]
		}
		rows[r] = row
	}
	return New(columns, rows)
}
