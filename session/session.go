// Package session holds the state an analysis routine shares with an
// embedding GUI: staged result updates awaiting harvest, registered
// plot classes, the delayed-results flag and routine-scoped scratch
// storage.
//
// Routines running standalone get the same API with the GUI-only calls
// reduced to logged no-ops, so a routine runs unchanged inside and
// outside the GUI.
package session

import (
	"log/slog"

	"github.com/labscript-suite/lyse-go/internal/logging"
)

// ResultKey identifies one staged scalar result within a shot file.
type ResultKey struct {
	Group string
	Name  string
}

// Context is the per-routine session state. It is not safe for
// concurrent use; the execution model is one routine at a time.
type Context struct {
	embedded    bool
	pending     map[string]map[ResultKey]any
	plotClasses map[string]any
	delay       bool
	storage     *Storage
	log         *slog.Logger
}

// New returns a standalone session context.
func New() *Context {
	return newContext(false)
}

// NewEmbedded returns the session context used when the routine runs
// inside the GUI.
func NewEmbedded() *Context {
	return newContext(true)
}

func newContext(embedded bool) *Context {
	return &Context{
		embedded:    embedded,
		pending:     map[string]map[ResultKey]any{},
		plotClasses: map[string]any{},
		storage:     &Storage{values: map[string]any{}},
		log:         logging.Component("session"),
	}
}

// Embedded reports whether the routine is running inside the GUI.
func (c *Context) Embedded() bool { return c.embedded }

// Reset drops all staged results, registered plot classes, the delay
// flag and the routine storage.
func (c *Context) Reset() {
	c.pending = map[string]map[ResultKey]any{}
	c.plotClasses = map[string]any{}
	c.delay = false
	c.storage = &Storage{values: map[string]any{}}
}

// =============================================================================
// Staged Results
// =============================================================================

// StageResult records a saved scalar result for the GUI to harvest.
// Standalone sessions have no harvester and stage nothing.
func (c *Context) StageResult(filepath, group, name string, value any) {
	if !c.embedded {
		return
	}
	m, ok := c.pending[filepath]
	if !ok {
		m = map[ResultKey]any{}
		c.pending[filepath] = m
	}
	m[ResultKey{Group: group, Name: name}] = value
}

// Pending returns a copy of the staged results for one shot file.
func (c *Context) Pending(filepath string) map[ResultKey]any {
	out := make(map[ResultKey]any, len(c.pending[filepath]))
	for k, v := range c.pending[filepath] {
		out[k] = v
	}
	return out
}

// TakePending returns the staged results for one shot file and clears
// them.
func (c *Context) TakePending(filepath string) map[ResultKey]any {
	out := c.pending[filepath]
	delete(c.pending, filepath)
	if out == nil {
		out = map[ResultKey]any{}
	}
	return out
}

// =============================================================================
// Plot Classes
// =============================================================================

// RegisterPlotClass associates a custom plot implementation with a plot
// identifier. Outside the GUI this logs a warning and has no effect.
func (c *Context) RegisterPlotClass(id string, cls any) {
	if !c.embedded {
		c.log.Warn("RegisterPlotClass has no effect outside the GUI", "id", id)
		return
	}
	c.plotClasses[id] = cls
}

// PlotClass returns the plot implementation registered under id.
func (c *Context) PlotClass(id string) (any, bool) {
	cls, ok := c.plotClasses[id]
	return cls, ok
}

// =============================================================================
// Delayed Results
// =============================================================================

// DelayResultsReturn asks the GUI to defer harvesting staged results
// until the routine finishes. Outside the GUI this logs a warning and
// has no effect.
func (c *Context) DelayResultsReturn() {
	if !c.embedded {
		c.log.Warn("DelayResultsReturn has no effect outside the GUI")
		return
	}
	c.delay = true
}

// DelayRequested reports whether the routine asked for deferred
// harvesting.
func (c *Context) DelayRequested() bool { return c.delay }

// =============================================================================
// Routine Storage
// =============================================================================

// Storage is scratch state that survives across repeated executions of
// one routine within a session.
type Storage struct {
	values map[string]any
}

// Storage returns the routine-scoped scratch storage.
func (c *Context) Storage() *Storage { return c.storage }

// Set stores a value under key.
func (s *Storage) Set(key string, value any) {
	s.values[key] = value
}

// Get returns the value stored under key.
func (s *Storage) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Delete removes the value stored under key.
func (s *Storage) Delete(key string) {
	delete(s.values, key)
}

// Value returns the value stored under key when it has type T.
func Value[T any](s *Storage, key string) (T, bool) {
	var zero T
	v, ok := s.values[key]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
