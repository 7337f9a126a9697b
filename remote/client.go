// Package remote fetches aggregate result tables from a running
// analysis GUI over its textual request/reply protocol.
//
// The client is deliberately connection-less: each request dials,
// sends one command line, reads one framed reply and hangs up. Failures
// propagate to the caller; there are no retries.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/labscript-suite/lyse-go/config"
	"github.com/labscript-suite/lyse-go/frame"
	"github.com/labscript-suite/lyse-go/internal/labconfig"
	"github.com/labscript-suite/lyse-go/internal/logging"
)

var (
	// ErrBadNSequences reports a negative sequence count.
	ErrBadNSequences = errors.New("n_sequences must be non-negative")

	// ErrBadReply reports a reply the client could not decode.
	ErrBadReply = errors.New("malformed dataframe reply")
)

// Transport delivers one command to the GUI and returns the raw reply
// body. It blocks for at most timeout.
type Transport func(host string, port int, command string, timeout time.Duration) ([]byte, error)

// Client fetches dataframes from the GUI.
type Client struct {
	Host    string
	Port    int
	Timeout time.Duration

	// IntegerIndexing selects the (sequence_index, run number,
	// run repeat) index over the default (sequence, run time) one.
	IntegerIndexing bool

	// Transport delivers the command; nil selects the TCP transport.
	Transport Transport

	log *slog.Logger
}

// A Client is usable as a plain struct literal; the unexported logger
// and a nil Transport are defaulted on first use.
func (c *Client) logger() *slog.Logger {
	if c.log == nil {
		c.log = logging.Component("remote")
	}
	return c.log
}

func (c *Client) transport() Transport {
	if c.Transport == nil {
		return TCPTransport
	}
	return c.Transport
}

// ClientOption configures NewClient.
type ClientOption func(*Client)

// WithHost overrides the configured GUI host.
func WithHost(host string) ClientOption {
	return func(c *Client) { c.Host = host }
}

// WithPort overrides the configured GUI port.
func WithPort(port int) ClientOption {
	return func(c *Client) { c.Port = port }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.Timeout = d }
}

// WithTransport substitutes the transport, e.g. for tests.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) { c.Transport = t }
}

// NewClient builds a client from the lab configuration: GUI host,
// port (42519 fallback) and the integer-indexing preference.
func NewClient(opts ...ClientOption) *Client {
	cfg := labconfig.LoadDefault()
	c := &Client{
		Host:            cfg.Lyse.Host,
		Port:            cfg.LysePort(),
		Timeout:         config.DefaultFetchTimeout,
		IntegerIndexing: cfg.Lyse.IntegerIndexing,
		Transport:       TCPTransport,
		log:             logging.Component("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DataframeOptions narrows a dataframe fetch.
type DataframeOptions struct {
	// NSequences, when non-nil, limits the result to the most recent n
	// sequences. Zero is valid and yields an empty table.
	NSequences *int

	// Filter restricts rows server-side; keys and values are passed
	// through as the GUI's filter keyword arguments.
	Filter map[string]any
}

// NSequences is a convenience for building a DataframeOptions sequence
// limit.
func NSequences(n int) *int { return &n }

// Dataframe fetches the current dataframe. Options are validated
// before any I/O. The reply is re-indexed according to the client's
// indexing mode and stably sorted by index; replies missing the index
// columns, and empty replies, keep positional order.
func (c *Client) Dataframe(opts DataframeOptions) (*frame.Frame, error) {
	command, err := buildCommand(opts)
	if err != nil {
		return nil, err
	}

	c.logger().Debug("fetching dataframe", "host", c.Host, "port", c.Port, "command", command)
	reply, err := c.transport()(c.Host, c.Port, command, c.Timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch dataframe from %s:%d: %w", c.Host, c.Port, err)
	}

	f, err := decodeReply(reply)
	if err != nil {
		return nil, err
	}
	c.reindex(f)
	f.SortByIndex()
	return f, nil
}

// buildCommand validates the options and renders the command line.
func buildCommand(opts DataframeOptions) (string, error) {
	command := "get_dataframe"
	if opts.NSequences != nil {
		if *opts.NSequences < 0 {
			return "", fmt.Errorf("%w: %d", ErrBadNSequences, *opts.NSequences)
		}
		command += fmt.Sprintf(" --n_sequences %d", *opts.NSequences)
	}
	if opts.Filter != nil {
		raw, err := json.Marshal(opts.Filter)
		if err != nil {
			return "", fmt.Errorf("encode filter: %w", err)
		}
		command += " --filter_kwargs " + shellQuote(string(raw))
	}
	return command, nil
}

// tableReply is the GUI's JSON table shape.
type tableReply struct {
	Columns [][]string `json:"columns"`
	Rows    [][]any    `json:"rows"`
}

func decodeReply(reply []byte) (*frame.Frame, error) {
	var table tableReply
	if err := json.Unmarshal(reply, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	f, err := frame.New(table.Columns, table.Rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	return f, nil
}

// reindex applies the configured index to a fetched frame. When any
// index column is missing, or the table is empty, the frame keeps its
// positional order.
func (c *Client) reindex(f *frame.Frame) {
	if f.NumRows() == 0 {
		return
	}
	var labels [][]string
	if c.IntegerIndexing {
		labels = [][]string{{"sequence_index"}, {"run number"}, {"run repeat"}}
	} else {
		labels = [][]string{{"sequence"}, {"run time"}}
	}
	if err := f.SetIndex(labels...); err != nil {
		c.logger().Debug("index columns missing, keeping positional order", "err", err)
		f.ResetIndex()
	}
}
