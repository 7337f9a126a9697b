package run

import (
	"fmt"

	"github.com/labscript-suite/lyse-go/frame"
	"github.com/labscript-suite/lyse-go/shotfile"
)

// Sequence accesses a whole sequence of shots at once. It is a Run over
// its own shot file, where sequence-wide analysis results are saved
// under its own results group, plus read-only member runs over which the
// per-shot accessors fan out, one result per shot file path.
type Sequence struct {
	*Run
	paths []string
	runs  map[string]*Run
}

// NewSequence builds a sequence backed by the shot file at path, with
// the member shot files given in order. The sequence's own results
// group follows the same rules as New; the members are always opened
// read-only.
func NewSequence(path string, runPaths []string, opts ...Option) (*Sequence, error) {
	own, err := New(path, opts...)
	if err != nil {
		return nil, err
	}
	s := &Sequence{
		Run:   own,
		paths: append([]string(nil), runPaths...),
		runs:  make(map[string]*Run, len(runPaths)),
	}
	for _, p := range runPaths {
		r, err := New(p, ReadOnly())
		if err != nil {
			return nil, fmt.Errorf("sequence member %s: %w", p, err)
		}
		s.runs[p] = r
	}
	return s, nil
}

// NewSequenceFromFrame builds a sequence backed by the shot file at
// path, with the members taken from the "filepath" column of a fetched
// dataframe.
func NewSequenceFromFrame(path string, f *frame.Frame, opts ...Option) (*Sequence, error) {
	cells, err := f.Column("filepath")
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(cells))
	for i, cell := range cells {
		p, ok := cell.(string)
		if !ok {
			return nil, fmt.Errorf("filepath column row %d: %T is not a string: %w",
				i, cell, shotfile.ErrBadValue)
		}
		paths = append(paths, p)
	}
	return NewSequence(path, paths, opts...)
}

// Paths returns the member shot file paths in sequence order.
func (s *Sequence) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Member returns the read-only member run for one shot file path.
func (s *Sequence) Member(path string) (*Run, bool) {
	r, ok := s.runs[path]
	return r, ok
}

// Trace reads the named trace from every member, keyed by shot file
// path. Members without a traces group contribute an empty trace.
func (s *Sequence) Trace(name string) (map[string]Trace, error) {
	out := make(map[string]Trace, len(s.paths))
	for _, p := range s.paths {
		tr, err := s.runs[p].Trace(name)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", p, err)
		}
		out[p] = tr
	}
	return out, nil
}

// ResultArray reads one array result from every member, keyed by shot
// file path.
func (s *Sequence) ResultArray(group, name string) (map[string]shotfile.Dataset, error) {
	out := make(map[string]shotfile.Dataset, len(s.paths))
	for _, p := range s.paths {
		ds, err := s.runs[p].ResultArray(group, name)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", p, err)
		}
		out[p] = ds
	}
	return out, nil
}

// Traces is not supported on sequences; read traces one name at a time
// with Trace.
func (s *Sequence) Traces(names ...string) (map[string][]Trace, error) {
	return nil, fmt.Errorf("Sequence.Traces: %w", shotfile.ErrUnsupported)
}

// ResultArrays is not supported on sequences; read arrays one name at a
// time with ResultArray.
func (s *Sequence) ResultArrays(group string, names ...string) (map[string][]shotfile.Dataset, error) {
	return nil, fmt.Errorf("Sequence.ResultArrays: %w", shotfile.ErrUnsupported)
}

// Image is not supported on sequences.
func (s *Sequence) Image(orientation, label, name string) (map[string]shotfile.Dataset, error) {
	return nil, fmt.Errorf("Sequence.Image: %w", shotfile.ErrUnsupported)
}
