// Package sqlitestore implements the shotfile driver for SQLite-backed
// shot containers (.shot files).
//
// The hierarchical group/attribute/dataset model is mapped onto three
// tables: nodes (one row per group or dataset, keyed by slash path),
// attrs (one row per attribute) and datasets (shape, element type and a
// raw value blob). This driver carries the full read-write surface of
// the accessor contract; labs that need analysis results written back
// into the shot container itself use this format, while HDF5 shot files
// from the acquisition system remain readable through the hdf5 driver.
//
// Sessions are short-lived by contract: one database handle per logical
// operation, closed before the operation returns.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/labscript-suite/lyse-go/shotfile"
)

func init() {
	shotfile.Register(driver{})
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	path TEXT PRIMARY KEY,
	kind INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS attrs (
	path  TEXT NOT NULL,
	name  TEXT NOT NULL,
	vkind TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (path, name)
);
CREATE TABLE IF NOT EXISTS datasets (
	path  TEXT PRIMARY KEY,
	dtype TEXT NOT NULL,
	shape TEXT NOT NULL,
	codec TEXT NOT NULL DEFAULT '',
	data  BLOB NOT NULL
);
INSERT OR IGNORE INTO nodes (path, kind) VALUES ('', 0);
`

type driver struct{}

func (driver) Name() string { return "sqlite" }

func (driver) Open(path string, mode shotfile.Mode) (shotfile.File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open shot container %s: %w", path, err)
	}
	dsn := "file:" + path
	if mode == shotfile.ModeRead {
		dsn += "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open shot container %s: %w", path, err)
	}
	// The access discipline is single-threaded; one connection keeps
	// the sqlite lock behavior predictable.
	db.SetMaxOpenConns(1)
	return &store{path: path, mode: mode, db: db}, nil
}

// Create initializes a new, empty shot container at path. The file must
// not already exist.
func Create(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("create shot container %s: %w", path, shotfile.ErrExists)
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return fmt.Errorf("create shot container %s: %w", path, err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("initialize shot container %s: %w", path, err)
	}
	return nil
}

// store is one open session.
type store struct {
	path   string
	mode   shotfile.Mode
	db     *sql.DB
	closed bool
}

func (s *store) Path() string        { return s.path }
func (s *store) Mode() shotfile.Mode { return s.mode }

func (s *store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *store) writable() error {
	if s.mode != shotfile.ModeReadWrite {
		return fmt.Errorf("session on %s: %w", s.path, shotfile.ErrReadOnly)
	}
	return nil
}

// norm strips leading and trailing slashes; the root group is "".
func norm(p string) string {
	return strings.Trim(p, "/")
}

const (
	kindGroup   = 0
	kindDataset = 1
)

// nodeKind reports the kind of the node at path, if present.
func (s *store) nodeKind(p string) (int, bool, error) {
	var kind int
	err := s.db.QueryRow(`SELECT kind FROM nodes WHERE path = ?`, norm(p)).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query node %q: %w", p, err)
	}
	return kind, true, nil
}

func (s *store) GroupExists(p string) (bool, error) {
	kind, ok, err := s.nodeKind(p)
	return ok && kind == kindGroup, err
}

func (s *store) DatasetExists(p string) (bool, error) {
	kind, ok, err := s.nodeKind(p)
	return ok && kind == kindDataset, err
}

func (s *store) CreateGroup(parent, name string) error {
	if err := s.writable(); err != nil {
		return err
	}
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("create group %q: %w", name, shotfile.ErrBadValue)
	}
	parent = norm(parent)
	kind, ok, err := s.nodeKind(parent)
	if err != nil {
		return err
	}
	if !ok || kind != kindGroup {
		return fmt.Errorf("create group %q: parent %q: %w", name, parent, shotfile.ErrGroupNotFound)
	}
	child := join(parent, name)
	if _, ok, err := s.nodeKind(child); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("create group %q: %w", child, shotfile.ErrExists)
	}
	if _, err := s.db.Exec(`INSERT INTO nodes (path, kind) VALUES (?, ?)`, child, kindGroup); err != nil {
		return fmt.Errorf("create group %q: %w", child, err)
	}
	return nil
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (s *store) Children(p string) ([]shotfile.Node, error) {
	p = norm(p)
	kind, ok, err := s.nodeKind(p)
	if err != nil {
		return nil, err
	}
	if !ok || kind != kindGroup {
		return nil, fmt.Errorf("list %q: %w", p, shotfile.ErrGroupNotFound)
	}
	prefix := p
	if prefix != "" {
		prefix += "/"
	}
	rows, err := s.db.Query(
		`SELECT path, kind FROM nodes
		 WHERE path GLOB ? AND path NOT GLOB ?
		 ORDER BY path`,
		prefix+"*", prefix+"*/*")
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", p, err)
	}
	defer rows.Close()

	var nodes []shotfile.Node
	for rows.Next() {
		var child string
		var k int
		if err := rows.Scan(&child, &k); err != nil {
			return nil, err
		}
		if child == p {
			continue
		}
		node := shotfile.Node{Name: strings.TrimPrefix(child, prefix), Kind: shotfile.KindGroup}
		if k == kindDataset {
			node.Kind = shotfile.KindDataset
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (s *store) Attrs(p string) (map[string]any, error) {
	p = norm(p)
	if _, ok, err := s.nodeKind(p); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("attributes of %q: %w", p, shotfile.ErrNotFound)
	}
	rows, err := s.db.Query(`SELECT name, vkind, value FROM attrs WHERE path = ?`, p)
	if err != nil {
		return nil, fmt.Errorf("attributes of %q: %w", p, err)
	}
	defer rows.Close()

	attrs := make(map[string]any)
	for rows.Next() {
		var name, vkind, raw string
		if err := rows.Scan(&name, &vkind, &raw); err != nil {
			return nil, err
		}
		v, err := decodeValue(vkind, raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q of %q: %w", name, p, err)
		}
		attrs[name] = v
	}
	return attrs, rows.Err()
}

func (s *store) SetAttr(p, name string, value any) error {
	if err := s.writable(); err != nil {
		return err
	}
	p = norm(p)
	if _, ok, err := s.nodeKind(p); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("set attribute %q on %q: %w", name, p, shotfile.ErrNotFound)
	}
	vkind, raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("set attribute %q on %q: %w", name, p, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO attrs (path, name, vkind, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (path, name) DO UPDATE SET vkind = excluded.vkind, value = excluded.value`,
		p, name, vkind, raw)
	if err != nil {
		return fmt.Errorf("set attribute %q on %q: %w", name, p, err)
	}
	return nil
}

func (s *store) ReadDataset(p string) (shotfile.Dataset, error) {
	p = norm(p)
	var dtype, shapeJSON, codec string
	var blob []byte
	err := s.db.QueryRow(`SELECT dtype, shape, codec, data FROM datasets WHERE path = ?`, p).
		Scan(&dtype, &shapeJSON, &codec, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return shotfile.Dataset{}, fmt.Errorf("dataset %q: %w", p, shotfile.ErrDatasetNotFound)
	}
	if err != nil {
		return shotfile.Dataset{}, fmt.Errorf("dataset %q: %w", p, err)
	}
	ds, err := decodeDataset(dtype, shapeJSON, codec, blob)
	if err != nil {
		return shotfile.Dataset{}, fmt.Errorf("dataset %q: %w", p, err)
	}
	return ds, nil
}

func (s *store) CreateDataset(p string, ds shotfile.Dataset, opts ...shotfile.DatasetOption) error {
	if err := s.writable(); err != nil {
		return err
	}
	p = norm(p)
	i := strings.LastIndex(p, "/")
	parent, name := "", p
	if i >= 0 {
		parent, name = p[:i], p[i+1:]
	}
	if name == "" {
		return fmt.Errorf("create dataset %q: %w", p, shotfile.ErrBadValue)
	}
	kind, ok, err := s.nodeKind(parent)
	if err != nil {
		return err
	}
	if !ok || kind != kindGroup {
		return fmt.Errorf("create dataset %q: parent %q: %w", p, parent, shotfile.ErrGroupNotFound)
	}
	if _, ok, err := s.nodeKind(p); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("create dataset %q: %w", p, shotfile.ErrExists)
	}

	o := shotfile.ApplyDatasetOptions(opts)
	dtype, shapeJSON, codec, blob, err := encodeDataset(ds, o)
	if err != nil {
		return fmt.Errorf("create dataset %q: %w", p, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("create dataset %q: %w", p, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO nodes (path, kind) VALUES (?, ?)`, p, kindDataset); err != nil {
		return fmt.Errorf("create dataset %q: %w", p, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO datasets (path, dtype, shape, codec, data) VALUES (?, ?, ?, ?, ?)`,
		p, dtype, shapeJSON, codec, blob); err != nil {
		return fmt.Errorf("create dataset %q: %w", p, err)
	}
	for aname, av := range o.Attrs {
		vkind, raw, err := encodeValue(av)
		if err != nil {
			return fmt.Errorf("create dataset %q: attribute %q: %w", p, aname, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO attrs (path, name, vkind, value) VALUES (?, ?, ?, ?)`,
			p, aname, vkind, raw); err != nil {
			return fmt.Errorf("create dataset %q: attribute %q: %w", p, aname, err)
		}
	}
	return tx.Commit()
}

func (s *store) DeleteDataset(p string) error {
	if err := s.writable(); err != nil {
		return err
	}
	p = norm(p)
	kind, ok, err := s.nodeKind(p)
	if err != nil {
		return err
	}
	if !ok || kind != kindDataset {
		return fmt.Errorf("delete dataset %q: %w", p, shotfile.ErrDatasetNotFound)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete dataset %q: %w", p, err)
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM datasets WHERE path = ?`,
		`DELETE FROM attrs WHERE path = ?`,
		`DELETE FROM nodes WHERE path = ?`,
	} {
		if _, err := tx.Exec(stmt, p); err != nil {
			return fmt.Errorf("delete dataset %q: %w", p, err)
		}
	}
	return tx.Commit()
}

func (s *store) Walk(root string, fn shotfile.WalkFunc) error {
	root = norm(root)
	kind, ok, err := s.nodeKind(root)
	if err != nil {
		return err
	}
	if !ok || kind != kindGroup {
		return fmt.Errorf("walk %q: %w", root, shotfile.ErrGroupNotFound)
	}
	return s.walk(root, "", fn)
}

func (s *store) walk(abs, rel string, fn shotfile.WalkFunc) error {
	children, err := s.Children(abs)
	if err != nil {
		return err
	}
	for _, child := range children {
		childRel := join(rel, child.Name)
		if err := fn(childRel, child); err != nil {
			return err
		}
		if child.Kind == shotfile.KindGroup {
			if err := s.walk(join(abs, child.Name), childRel, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
