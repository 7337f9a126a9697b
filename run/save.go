package run

import (
	"fmt"

	"github.com/labscript-suite/lyse-go/shotfile"
)

// SaveOptions configures the write accessors.
type SaveOptions struct {
	group       string
	noOverwrite bool
	keepAttrs   bool
	storage     []shotfile.DatasetOption
}

// SaveOption configures one save operation.
type SaveOption func(*SaveOptions)

// InGroup saves under the named results group instead of the run's own,
// creating it if absent.
func InGroup(name string) SaveOption {
	return func(o *SaveOptions) { o.group = name }
}

// NoOverwrite makes the save fail with ErrExists instead of replacing a
// result that is already present. Nothing is written on failure.
func NoOverwrite() SaveOption {
	return func(o *SaveOptions) { o.noOverwrite = true }
}

// KeepAttrs preserves the attributes of an array result across an
// overwrite.
func KeepAttrs() SaveOption {
	return func(o *SaveOptions) { o.keepAttrs = true }
}

// WithStorage passes storage configuration (compression, chunking)
// through to the container driver.
func WithStorage(opts ...shotfile.DatasetOption) SaveOption {
	return func(o *SaveOptions) { o.storage = append(o.storage, opts...) }
}

func (r *Run) saveOptions(opts []SaveOption) (*SaveOptions, error) {
	if r.readOnly {
		return nil, fmt.Errorf("run on %s: %w", r.path, shotfile.ErrReadOnly)
	}
	o := &SaveOptions{group: r.group}
	for _, opt := range opts {
		opt(o)
	}
	if o.group != r.group {
		if err := r.ensureResultsGroup(o.group); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// withWrite runs fn inside one read-write session.
func (r *Run) withWrite(fn func(shotfile.File) error) error {
	f, err := shotfile.Open(r.path, shotfile.ModeReadWrite)
	if err != nil {
		return err
	}
	err = fn(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// SaveResult saves one scalar result as an attribute of the results
// group. An existing result is replaced unless NoOverwrite is given.
// With an attached session the saved value is also staged for the
// embedding GUI.
func (r *Run) SaveResult(name string, value any, opts ...SaveOption) error {
	o, err := r.saveOptions(opts)
	if err != nil {
		return err
	}
	gpath := "results/" + o.group
	err = r.withWrite(func(f shotfile.File) error {
		if o.noOverwrite {
			attrs, err := f.Attrs(gpath)
			if err != nil {
				return err
			}
			if _, ok := attrs[name]; ok {
				return fmt.Errorf("result %q in group %q: %w", name, o.group, shotfile.ErrExists)
			}
		}
		return f.SetAttr(gpath, name, value)
	})
	if err != nil {
		return err
	}
	if r.sess != nil {
		r.sess.StageResult(r.path, o.group, name, value)
	}
	return nil
}

// SaveResults saves alternating name/value pairs of scalar results, in
// order.
func (r *Run) SaveResults(pairs ...any) error {
	return r.savePairs(pairs, func(name string, value any) error {
		return r.SaveResult(name, value)
	})
}

// SaveResultArray saves one array result as a dataset in the results
// group. An existing dataset is replaced unless NoOverwrite is given;
// KeepAttrs carries the old dataset's attributes over to the
// replacement.
func (r *Run) SaveResultArray(name string, value any, opts ...SaveOption) error {
	o, err := r.saveOptions(opts)
	if err != nil {
		return err
	}
	ds, err := shotfile.NewDataset(value)
	if err != nil {
		return fmt.Errorf("result array %q: %w", name, err)
	}
	dpath := "results/" + o.group + "/" + name

	return r.withWrite(func(f shotfile.File) error {
		exists, err := f.DatasetExists(dpath)
		if err != nil {
			return err
		}
		storage := o.storage
		if exists {
			if o.noOverwrite {
				return fmt.Errorf("result array %q in group %q: %w", name, o.group, shotfile.ErrExists)
			}
			if o.keepAttrs {
				attrs, err := f.Attrs(dpath)
				if err != nil {
					return err
				}
				if len(attrs) > 0 {
					storage = append(storage, shotfile.WithAttrs(attrs))
				}
			}
			if err := f.DeleteDataset(dpath); err != nil {
				return err
			}
		}
		return f.CreateDataset(dpath, ds, storage...)
	})
}

// SaveResultArrays saves alternating name/value pairs of array results,
// in order.
func (r *Run) SaveResultArrays(pairs ...any) error {
	return r.savePairs(pairs, func(name string, value any) error {
		return r.SaveResultArray(name, value)
	})
}

func (r *Run) savePairs(pairs []any, save func(string, any) error) error {
	if len(pairs)%2 != 0 {
		return fmt.Errorf("save pairs: odd argument count %d: %w",
			len(pairs), shotfile.ErrBadValue)
	}
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			return fmt.Errorf("save pairs: name at position %d is %T, want string: %w",
				i, pairs[i], shotfile.ErrBadValue)
		}
		if err := save(name, pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// SaveResultsDict saves a map of scalar results.
func (r *Run) SaveResultsDict(results map[string]any, opts ...SaveOption) error {
	for name, value := range results {
		if err := r.SaveResult(name, value, opts...); err != nil {
			return err
		}
	}
	return nil
}

// Uncertain pairs a result value with its uncertainty.
type Uncertain struct {
	Value       any
	Uncertainty any
}

// SaveUncertainResultsDict saves a map of results with uncertainties:
// each entry stores its value under the name and its uncertainty under
// "u_<name>".
func (r *Run) SaveUncertainResultsDict(results map[string]Uncertain, opts ...SaveOption) error {
	for name, u := range results {
		if err := r.SaveResult(name, u.Value, opts...); err != nil {
			return err
		}
		if err := r.SaveResult("u_"+name, u.Uncertainty, opts...); err != nil {
			return err
		}
	}
	return nil
}
