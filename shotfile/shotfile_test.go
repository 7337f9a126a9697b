package shotfile

import (
	"errors"
	"testing"
)

// fakeDriver records the sessions it opens so tests can assert on the
// open discipline.
type fakeDriver struct {
	name   string
	opens  []Mode
	groups map[string]bool
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Open(path string, mode Mode) (File, error) {
	d.opens = append(d.opens, mode)
	return &fakeFile{d: d, path: path, mode: mode}, nil
}

type fakeFile struct {
	d    *fakeDriver
	path string
	mode Mode
}

func (f *fakeFile) Path() string { return f.path }
func (f *fakeFile) Mode() Mode   { return f.mode }
func (f *fakeFile) Close() error { return nil }

func (f *fakeFile) GroupExists(path string) (bool, error) {
	return f.d.groups[path], nil
}

func (f *fakeFile) CreateGroup(parent, name string) error {
	if f.mode != ModeReadWrite {
		return ErrReadOnly
	}
	key := name
	if parent != "" {
		key = parent + "/" + name
	}
	if f.d.groups[key] {
		return ErrExists
	}
	f.d.groups[key] = true
	return nil
}

func (f *fakeFile) Children(string) ([]Node, error)         { return nil, nil }
func (f *fakeFile) Attrs(string) (map[string]any, error)    { return nil, nil }
func (f *fakeFile) SetAttr(string, string, any) error       { return nil }
func (f *fakeFile) DatasetExists(string) (bool, error)      { return false, nil }
func (f *fakeFile) ReadDataset(string) (Dataset, error)     { return Dataset{}, ErrDatasetNotFound }
func (f *fakeFile) DeleteDataset(string) error              { return nil }
func (f *fakeFile) Walk(string, WalkFunc) error             { return nil }
func (f *fakeFile) CreateDataset(string, Dataset, ...DatasetOption) error {
	return nil
}

func register(t *testing.T, name string) *fakeDriver {
	t.Helper()
	d := &fakeDriver{name: name, groups: map[string]bool{}}
	Register(d)
	t.Cleanup(func() {
		driversMu.Lock()
		delete(drivers, name)
		driversMu.Unlock()
	})
	return d
}

func TestOpenDispatchesOnExtension(t *testing.T) {
	d := register(t, "sqlite")

	f, err := Open("/data/2026/shot_0001.shot", ModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if got := f.Path(); got != "/data/2026/shot_0001.shot" {
		t.Errorf("Path() = %q", got)
	}
	if len(d.opens) != 1 || d.opens[0] != ModeRead {
		t.Errorf("opens = %v, want one read open", d.opens)
	}
}

func TestOpenUnknownExtension(t *testing.T) {
	register(t, "sqlite")

	_, err := Open("notes.txt", ModeRead)
	if !errors.Is(err, ErrUnknownExtension) {
		t.Fatalf("err = %v, want ErrUnknownExtension", err)
	}
}

func TestOpenUnregisteredDriver(t *testing.T) {
	_, err := Open("shot.h5", ModeRead)
	if !errors.Is(err, ErrNoDriver) {
		t.Fatalf("err = %v, want ErrNoDriver", err)
	}
}

func TestOpenWith(t *testing.T) {
	register(t, "exotic")

	// Extension dispatch would fail for this name; the explicit driver
	// must still work.
	f, err := OpenWith("exotic", "shot.custom", ModeReadWrite)
	if err != nil {
		t.Fatalf("OpenWith: %v", err)
	}
	defer f.Close()
	if f.Mode() != ModeReadWrite {
		t.Errorf("Mode() = %v", f.Mode())
	}
}

func TestEnsureGroup(t *testing.T) {
	t.Run("creates missing group with one write open", func(t *testing.T) {
		d := register(t, "sqlite")

		if err := EnsureGroup("run.shot", "results", "fit"); err != nil {
			t.Fatalf("EnsureGroup: %v", err)
		}
		if !d.groups["results/fit"] {
			t.Error("group was not created")
		}
		want := []Mode{ModeRead, ModeReadWrite}
		if len(d.opens) != len(want) || d.opens[0] != want[0] || d.opens[1] != want[1] {
			t.Errorf("opens = %v, want %v", d.opens, want)
		}
	})

	t.Run("existing group opens read-only only", func(t *testing.T) {
		d := register(t, "sqlite")
		d.groups["results/fit"] = true

		if err := EnsureGroup("run.shot", "results", "fit"); err != nil {
			t.Fatalf("EnsureGroup: %v", err)
		}
		if len(d.opens) != 1 || d.opens[0] != ModeRead {
			t.Errorf("opens = %v, want a single read open", d.opens)
		}
	})
}

func TestRegisterDuplicatePanics(t *testing.T) {
	register(t, "dup")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register(&fakeDriver{name: "dup"})
}
