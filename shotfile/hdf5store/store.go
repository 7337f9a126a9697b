// Package hdf5store implements the shotfile driver for HDF5 shot files
// produced by the acquisition system.
//
// The driver is read-only. Analysis results destined for an HDF5 shot
// file have to be written by the acquisition-side tooling; opening an
// .h5 file in read-write mode fails with ErrDriverReadOnly so that the
// failure happens up front, before any partial write is attempted.
package hdf5store

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/robert-malhotra/go-hdf5/hdf5"

	"github.com/labscript-suite/lyse-go/shotfile"
)

func init() {
	shotfile.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return "hdf5" }

func (driver) Open(path string, mode shotfile.Mode) (shotfile.File, error) {
	if mode != shotfile.ModeRead {
		return nil, fmt.Errorf("open %s for %s: %w", path, mode, shotfile.ErrDriverReadOnly)
	}
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shot file %s: %w", path, err)
	}
	return &store{path: path, f: f}, nil
}

type store struct {
	path string
	f    *hdf5.File
}

func (s *store) Path() string        { return s.path }
func (s *store) Mode() shotfile.Mode { return shotfile.ModeRead }
func (s *store) Close() error        { return s.f.Close() }

func (s *store) readOnly(op string) error {
	return fmt.Errorf("%s on %s: %w", op, s.path, shotfile.ErrDriverReadOnly)
}

func (s *store) CreateGroup(parent, name string) error { return s.readOnly("create group") }
func (s *store) SetAttr(path, name string, value any) error {
	return s.readOnly("set attribute")
}
func (s *store) CreateDataset(path string, ds shotfile.Dataset, opts ...shotfile.DatasetOption) error {
	return s.readOnly("create dataset")
}
func (s *store) DeleteDataset(path string) error { return s.readOnly("delete dataset") }

// openGroup resolves a contract path (no leading slash, "" is root) to a
// group.
func (s *store) openGroup(p string) (*hdf5.Group, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return s.f.Root(), nil
	}
	return s.f.Root().OpenGroup(p)
}

func (s *store) GroupExists(p string) (bool, error) {
	_, err := s.openGroup(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotGroup) {
		return false, nil
	}
	return false, fmt.Errorf("group %q in %s: %w", p, s.path, err)
}

func (s *store) DatasetExists(p string) (bool, error) {
	_, err := s.f.Root().OpenDataset(strings.Trim(p, "/"))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotDataset) {
		return false, nil
	}
	return false, fmt.Errorf("dataset %q in %s: %w", p, s.path, err)
}

func (s *store) Children(p string) ([]shotfile.Node, error) {
	g, err := s.openGroup(p)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotGroup) {
			return nil, fmt.Errorf("list %q in %s: %w", p, s.path, shotfile.ErrGroupNotFound)
		}
		return nil, fmt.Errorf("list %q in %s: %w", p, s.path, err)
	}
	members, err := g.Members()
	if err != nil {
		return nil, fmt.Errorf("list %q in %s: %w", p, s.path, err)
	}
	sort.Strings(members)

	nodes := make([]shotfile.Node, 0, len(members))
	for _, name := range members {
		if _, err := g.OpenGroup(name); err == nil {
			nodes = append(nodes, shotfile.Node{Name: name, Kind: shotfile.KindGroup})
			continue
		}
		if _, err := g.OpenDataset(name); err == nil {
			nodes = append(nodes, shotfile.Node{Name: name, Kind: shotfile.KindDataset})
			continue
		}
		// Unresolvable links are skipped rather than failing the whole
		// listing.
	}
	return nodes, nil
}

func (s *store) Attrs(p string) (map[string]any, error) {
	p = strings.Trim(p, "/")

	var names []string
	var attr func(name string) *hdf5.Attribute

	if g, err := s.openGroup(p); err == nil {
		names, attr = g.Attrs(), g.Attr
	} else if d, derr := s.f.Root().OpenDataset(p); derr == nil {
		names, attr = d.Attrs(), d.Attr
	} else if errors.Is(err, hdf5.ErrNotFound) {
		return nil, fmt.Errorf("attributes of %q in %s: %w", p, s.path, shotfile.ErrNotFound)
	} else {
		return nil, fmt.Errorf("attributes of %q in %s: %w", p, s.path, err)
	}

	attrs := make(map[string]any, len(names))
	for _, name := range names {
		a := attr(name)
		if a == nil {
			continue
		}
		v, err := a.Value()
		if err != nil {
			return nil, fmt.Errorf("attribute %q of %q in %s: %w", name, p, s.path, err)
		}
		attrs[name] = normalizeValue(v)
	}
	return attrs, nil
}

func (s *store) ReadDataset(p string) (shotfile.Dataset, error) {
	d, err := s.f.Root().OpenDataset(strings.Trim(p, "/"))
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotDataset) {
			return shotfile.Dataset{}, fmt.Errorf("dataset %q in %s: %w", p, s.path, shotfile.ErrDatasetNotFound)
		}
		return shotfile.Dataset{}, fmt.Errorf("dataset %q in %s: %w", p, s.path, err)
	}

	dims := d.Shape()
	shape := make([]int, len(dims))
	for i, n := range dims {
		shape[i] = int(n)
	}
	ds := shotfile.Dataset{Shape: shape}

	data, err := readElements(d)
	if err != nil {
		return shotfile.Dataset{}, fmt.Errorf("dataset %q in %s: %w", p, s.path, err)
	}
	ds.Data = data
	return ds, nil
}

// readElements reads the dataset elements as one of the contract's
// element slices, dispatching on the stored element type.
func readElements(d *hdf5.Dataset) (any, error) {
	t, err := d.GoType()
	if err != nil {
		return nil, err
	}
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return d.ReadFloat64()
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return d.ReadInt64()
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return d.ReadUint64()
	case reflect.String:
		return d.ReadString()
	default:
		return nil, fmt.Errorf("%w: element type %s", shotfile.ErrBadValue, t.Kind())
	}
}

func (s *store) Walk(root string, fn shotfile.WalkFunc) error {
	root = strings.Trim(root, "/")
	g, err := s.openGroup(root)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotGroup) {
			return fmt.Errorf("walk %q in %s: %w", root, s.path, shotfile.ErrGroupNotFound)
		}
		return fmt.Errorf("walk %q in %s: %w", root, s.path, err)
	}

	base := strings.Trim(g.Path(), "/")
	return hdf5.Walk(g, func(abs string, obj any, werr error) error {
		if werr != nil {
			return nil // skip unresolvable links
		}
		rel := strings.Trim(abs, "/")
		if base != "" {
			rel = strings.TrimPrefix(rel, base)
			rel = strings.Trim(rel, "/")
		}
		if rel == "" {
			return nil // the walk root itself
		}
		node := shotfile.Node{Name: rel[strings.LastIndex(rel, "/")+1:]}
		switch obj.(type) {
		case *hdf5.Group:
			node.Kind = shotfile.KindGroup
		case *hdf5.Dataset:
			node.Kind = shotfile.KindDataset
		default:
			return nil
		}
		return fn(rel, node)
	})
}

// normalizeValue folds the reader's scalar and slice types onto the
// contract's value set.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case int32:
		return int64(x)
	case []float32:
		out := make([]float64, len(x))
		for i, f := range x {
			out[i] = float64(f)
		}
		return out
	case []int32:
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out
	case []uint64:
		// Unsigned arrays appear in globals as index-like values; keep
		// them signed for a uniform caller surface.
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out
	default:
		return v
	}
}
