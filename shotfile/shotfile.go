// Package shotfile defines the structured-file accessor used by the
// analysis layer to read and write per-shot experiment files.
//
// A shot file is a hierarchical container addressed by slash-separated
// paths. Nodes are either groups (namespaces) or datasets (typed
// n-dimensional arrays); both may carry attributes (named scalar or
// small-array values). The conventional layout is:
//
//	globals                          experiment parameters (attributes,
//	                                 optionally nested into sub-groups)
//	data/traces/<name>/{t,values}    time-series datasets
//	images/<orientation>/<label>/<name>
//	results/<group>                  analysis output: attributes hold
//	                                 scalar results, datasets hold arrays
//
// Access is mediated by drivers registered per container format, in the
// manner of database/sql. The hdf5 driver reads shot files produced by
// the acquisition system; the sqlite driver provides the full read-write
// surface. Every logical operation performed by the layers above opens
// the file in the minimal required mode, operates, and closes it before
// returning - no handle outlives a single operation. This keeps the lock
// window against other processes touching the same file as small as
// possible, and guarantees release on every exit path.
package shotfile

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/labscript-suite/lyse-go/config"
)

// Mode selects how a shot file is opened.
type Mode int

const (
	// ModeRead opens the file for queries only.
	ModeRead Mode = iota

	// ModeReadWrite opens the file for mutation. Drivers that cannot
	// mutate their format reject this mode with ErrDriverReadOnly.
	ModeReadWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// NodeKind distinguishes groups from datasets.
type NodeKind int

const (
	KindGroup NodeKind = iota
	KindDataset
)

func (k NodeKind) String() string {
	if k == KindDataset {
		return "dataset"
	}
	return "group"
}

// Node describes one child of a group.
type Node struct {
	Name string
	Kind NodeKind
}

// WalkFunc is called for each node during Walk. The path is relative to
// the walk root. Returning a non-nil error stops the walk.
type WalkFunc func(path string, node Node) error

// File is one open session on a shot file. Implementations are not safe
// for concurrent use; the access discipline is single-threaded,
// one-session-per-operation by design.
type File interface {
	// Path returns the file path this session was opened on.
	Path() string

	// Mode returns the mode the session was opened in.
	Mode() Mode

	// GroupExists reports whether a group exists at the given path.
	GroupExists(path string) (bool, error)

	// CreateGroup creates group name under the (existing) parent group.
	// Creating a group that already exists is an error; callers use
	// EnsureGroup for idempotent creation.
	CreateGroup(parent, name string) error

	// Children lists the members of the group at path.
	Children(path string) ([]Node, error)

	// Attrs returns all attributes of the group or dataset at path.
	Attrs(path string) (map[string]any, error)

	// SetAttr creates or replaces one attribute on the group or dataset
	// at path. Existence checks for no-overwrite semantics belong to the
	// caller.
	SetAttr(path, name string, value any) error

	// DatasetExists reports whether a dataset exists at the given path.
	DatasetExists(path string) (bool, error)

	// ReadDataset reads the full dataset at path into memory.
	ReadDataset(path string) (Dataset, error)

	// CreateDataset creates a dataset at path. The parent group must
	// exist and no dataset may already be at path.
	CreateDataset(path string, ds Dataset, opts ...DatasetOption) error

	// DeleteDataset removes the dataset at path, including its
	// attributes.
	DeleteDataset(path string) error

	// Walk traverses every node below root (groups and datasets, depth
	// first, siblings in name order).
	Walk(root string, fn WalkFunc) error

	// Close ends the session. Close is idempotent.
	Close() error
}

// Driver opens sessions on one container format.
type Driver interface {
	// Name returns the registered driver name.
	Name() string

	// Open opens a session on the file at path.
	Open(path string, mode Mode) (File, error)
}

// =============================================================================
// Driver Registry
// =============================================================================

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under its name. It panics on a
// duplicate or nil registration, mirroring database/sql.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		panic("shotfile: Register driver is nil")
	}
	if _, dup := drivers[d.Name()]; dup {
		panic("shotfile: Register called twice for driver " + d.Name())
	}
	drivers[d.Name()] = d
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrNoDriver, name, Drivers())
	}
	return d, nil
}

// Open opens a session on the shot file at path, dispatching to the
// driver registered for the file's extension.
func Open(filePath string, mode Mode) (File, error) {
	ext := filepath.Ext(filePath)
	name, ok := config.ShotFileExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	d, err := lookupDriver(name)
	if err != nil {
		return nil, err
	}
	return d.Open(filePath, mode)
}

// OpenWith opens a session using a named driver, bypassing extension
// dispatch.
func OpenWith(driver, filePath string, mode Mode) (File, error) {
	d, err := lookupDriver(driver)
	if err != nil {
		return nil, err
	}
	return d.Open(filePath, mode)
}

// =============================================================================
// EnsureGroup
// =============================================================================

// EnsureGroup creates group name under parent in the file at filePath if
// it does not already exist. The existence check runs in a read-only
// session; a write session is opened only when the group is missing.
// This two-phase check exists purely to avoid touching (and thus
// timestamping) files that require no change. EnsureGroup is idempotent.
func EnsureGroup(filePath, parent, name string) error {
	f, err := Open(filePath, ModeRead)
	if err != nil {
		return err
	}
	exists, err := f.GroupExists(path.Join(parent, name))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	w, err := Open(filePath, ModeReadWrite)
	if err != nil {
		return err
	}
	err = w.CreateGroup(parent, name)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
