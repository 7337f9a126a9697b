package sqlitestore

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/labscript-suite/lyse-go/shotfile"
)

// =============================================================================
// Attribute Values
// =============================================================================

// Attribute values are stored as a (vkind, text) pair. Floats go through
// strconv rather than JSON so that NaN and the infinities survive the
// round trip; everything else is JSON.

func encodeValue(value any) (vkind, raw string, err error) {
	switch v := value.(type) {
	case float64:
		return "f64", strconv.FormatFloat(v, 'g', -1, 64), nil
	case float32:
		return "f64", strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case int:
		return "i64", strconv.FormatInt(int64(v), 10), nil
	case int32:
		return "i64", strconv.FormatInt(int64(v), 10), nil
	case int64:
		return "i64", strconv.FormatInt(v, 10), nil
	case uint64:
		return "u64", strconv.FormatUint(v, 10), nil
	case bool:
		return "bool", strconv.FormatBool(v), nil
	case string:
		return "str", v, nil
	case []float64:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		raw, err := jsonString(parts)
		return "f64[]", raw, err
	case []int64:
		raw, err := jsonString(v)
		return "i64[]", raw, err
	case []bool:
		raw, err := jsonString(v)
		return "bool[]", raw, err
	case []string:
		raw, err := jsonString(v)
		return "str[]", raw, err
	default:
		return "", "", fmt.Errorf("%w: %T", shotfile.ErrBadValue, value)
	}
}

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeValue(vkind, raw string) (any, error) {
	switch vkind {
	case "f64":
		return strconv.ParseFloat(raw, 64)
	case "i64":
		return strconv.ParseInt(raw, 10, 64)
	case "u64":
		return strconv.ParseUint(raw, 10, 64)
	case "bool":
		return strconv.ParseBool(raw)
	case "str":
		return raw, nil
	case "f64[]":
		var parts []string
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			return nil, err
		}
		out := make([]float64, len(parts))
		for i, p := range parts {
			x, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case "i64[]":
		var out []int64
		err := json.Unmarshal([]byte(raw), &out)
		return out, err
	case "bool[]":
		var out []bool
		err := json.Unmarshal([]byte(raw), &out)
		return out, err
	case "str[]":
		var out []string
		err := json.Unmarshal([]byte(raw), &out)
		return out, err
	default:
		return nil, fmt.Errorf("%w: stored value kind %q", shotfile.ErrBadValue, vkind)
	}
}

// =============================================================================
// Dataset Blobs
// =============================================================================

// Numeric and bool elements are packed little-endian into the blob;
// string elements are stored as a JSON array. The codec column is empty
// for raw blobs and "gzip" when a compression level was requested at
// creation time.

func encodeDataset(ds shotfile.Dataset, o *shotfile.DatasetOptions) (dtype, shapeJSON, codec string, blob []byte, err error) {
	shapeJSON, err = jsonString(ds.Shape)
	if err != nil {
		return "", "", "", nil, err
	}

	switch v := ds.Data.(type) {
	case []float64:
		dtype = "f64"
		blob = make([]byte, 8*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint64(blob[8*i:], math.Float64bits(x))
		}
	case []int64:
		dtype = "i64"
		blob = make([]byte, 8*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint64(blob[8*i:], uint64(x))
		}
	case []uint64:
		dtype = "u64"
		blob = make([]byte, 8*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint64(blob[8*i:], x)
		}
	case []bool:
		dtype = "bool"
		blob = make([]byte, len(v))
		for i, x := range v {
			if x {
				blob[i] = 1
			}
		}
	case []string:
		dtype = "str"
		raw, jerr := json.Marshal(v)
		if jerr != nil {
			return "", "", "", nil, jerr
		}
		blob = raw
	default:
		return "", "", "", nil, fmt.Errorf("%w: %T", shotfile.ErrBadValue, ds.Data)
	}

	if o != nil && o.Compression > 0 {
		codec = "gzip"
		var buf bytes.Buffer
		level := o.Compression
		if level > gzip.BestCompression {
			level = gzip.BestCompression
		}
		zw, zerr := gzip.NewWriterLevel(&buf, level)
		if zerr != nil {
			return "", "", "", nil, zerr
		}
		if _, zerr := zw.Write(blob); zerr != nil {
			return "", "", "", nil, zerr
		}
		if zerr := zw.Close(); zerr != nil {
			return "", "", "", nil, zerr
		}
		blob = buf.Bytes()
	}
	return dtype, shapeJSON, codec, blob, nil
}

func decodeDataset(dtype, shapeJSON, codec string, blob []byte) (shotfile.Dataset, error) {
	var shape []int
	if err := json.Unmarshal([]byte(shapeJSON), &shape); err != nil {
		return shotfile.Dataset{}, fmt.Errorf("stored shape: %w", err)
	}

	switch codec {
	case "":
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return shotfile.Dataset{}, err
		}
		blob, err = io.ReadAll(zr)
		if err != nil {
			return shotfile.Dataset{}, err
		}
		if err := zr.Close(); err != nil {
			return shotfile.Dataset{}, err
		}
	default:
		return shotfile.Dataset{}, fmt.Errorf("%w: stored codec %q", shotfile.ErrBadValue, codec)
	}

	ds := shotfile.Dataset{Shape: shape}
	switch dtype {
	case "f64":
		out := make([]float64, len(blob)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
		}
		ds.Data = out
	case "i64":
		out := make([]int64, len(blob)/8)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(blob[8*i:]))
		}
		ds.Data = out
	case "u64":
		out := make([]uint64, len(blob)/8)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(blob[8*i:])
		}
		ds.Data = out
	case "bool":
		out := make([]bool, len(blob))
		for i, b := range blob {
			out[i] = b != 0
		}
		ds.Data = out
	case "str":
		var out []string
		if err := json.Unmarshal(blob, &out); err != nil {
			return shotfile.Dataset{}, err
		}
		ds.Data = out
	default:
		return shotfile.Dataset{}, fmt.Errorf("%w: stored element type %q", shotfile.ErrBadValue, dtype)
	}
	return ds, nil
}
