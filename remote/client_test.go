package remote

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

// stubTransport records the command and serves a canned reply.
func stubTransport(reply tableReply, err error) (Transport, *string) {
	var got string
	return func(host string, port int, command string, timeout time.Duration) ([]byte, error) {
		got = command
		if err != nil {
			return nil, err
		}
		raw, merr := json.Marshal(reply)
		if merr != nil {
			return nil, merr
		}
		return raw, nil
	}, &got
}

func testClient(t *testing.T, reply tableReply) (*Client, *string) {
	t.Helper()
	transport, got := stubTransport(reply, nil)
	// A plain literal, the way external callers build clients; the
	// unexported logger must default on first use.
	c := &Client{
		Host:      "localhost",
		Port:      42519,
		Timeout:   time.Second,
		Transport: transport,
	}
	return c, got
}

func defaultReply() tableReply {
	return tableReply{
		Columns: [][]string{
			{"sequence"}, {"run time"}, {"filepath"}, {"fit", "amplitude"},
		},
		Rows: [][]any{
			{"seq_b", "12:00:02", "/d/3.shot", 3.0},
			{"seq_a", "12:00:01", "/d/2.shot", 2.0},
			{"seq_a", "12:00:00", "/d/1.shot", 1.0},
		},
	}
}

func TestDataframeCommand(t *testing.T) {
	tests := []struct {
		name string
		opts DataframeOptions
		want string
	}{
		{"bare", DataframeOptions{}, "get_dataframe"},
		{"n_sequences", DataframeOptions{NSequences: NSequences(4)},
			"get_dataframe --n_sequences 4"},
		{"zero n_sequences", DataframeOptions{NSequences: NSequences(0)},
			"get_dataframe --n_sequences 0"},
		{"filter", DataframeOptions{Filter: map[string]any{"sequence": "seq_a"}},
			`get_dataframe --filter_kwargs '{"sequence":"seq_a"}'`},
		{"combined", DataframeOptions{
			NSequences: NSequences(2),
			Filter:     map[string]any{"n": 1.5},
		}, `get_dataframe --n_sequences 2 --filter_kwargs '{"n":1.5}'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, got := testClient(t, defaultReply())
			if _, err := c.Dataframe(tt.opts); err != nil {
				t.Fatalf("Dataframe: %v", err)
			}
			if *got != tt.want {
				t.Errorf("command = %q, want %q", *got, tt.want)
			}
		})
	}
}

func TestDataframeRejectsNegativeNSequencesBeforeTransport(t *testing.T) {
	called := false
	c := &Client{
		Host: "localhost", Port: 42519, Timeout: time.Second,
		Transport: func(string, int, string, time.Duration) ([]byte, error) {
			called = true
			return nil, nil
		},
	}
	_, err := c.Dataframe(DataframeOptions{NSequences: NSequences(-1)})
	if !errors.Is(err, ErrBadNSequences) {
		t.Fatalf("err = %v, want ErrBadNSequences", err)
	}
	if called {
		t.Error("transport was invoked despite invalid options")
	}
}

func TestDataframeDefaultIndexSort(t *testing.T) {
	c, _ := testClient(t, defaultReply())
	f, err := c.Dataframe(DataframeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	col, err := f.Column("fit", "amplitude")
	if err != nil {
		t.Fatal(err)
	}
	// Sorted by (sequence, run time).
	if !reflect.DeepEqual(col, []any{1.0, 2.0, 3.0}) {
		t.Errorf("amplitudes = %v", col)
	}
	if f.Index == nil {
		t.Error("frame has no index")
	}
}

func TestDataframeIntegerIndex(t *testing.T) {
	reply := tableReply{
		Columns: [][]string{
			{"sequence_index"}, {"run number"}, {"run repeat"}, {"x"},
		},
		Rows: [][]any{
			{2.0, 0.0, 0.0, "b"},
			{1.0, 1.0, 0.0, "a2"},
			{1.0, 0.0, 0.0, "a1"},
		},
	}
	c, _ := testClient(t, reply)
	c.IntegerIndexing = true
	f, err := c.Dataframe(DataframeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	col, _ := f.Column("x")
	if !reflect.DeepEqual(col, []any{"a1", "a2", "b"}) {
		t.Errorf("x = %v", col)
	}
}

func TestDataframeMissingIndexColumnsKeepsPositionalOrder(t *testing.T) {
	reply := tableReply{
		Columns: [][]string{{"x"}},
		Rows:    [][]any{{"second"}, {"first"}},
	}
	c, _ := testClient(t, reply)
	f, err := c.Dataframe(DataframeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if f.Index != nil {
		t.Error("expected positional order")
	}
	col, _ := f.Column("x")
	if !reflect.DeepEqual(col, []any{"second", "first"}) {
		t.Errorf("x = %v, reply order disturbed", col)
	}
}

func TestDataframeEmptyReply(t *testing.T) {
	c, _ := testClient(t, tableReply{
		Columns: [][]string{{"sequence"}, {"run time"}},
		Rows:    nil,
	})
	f, err := c.Dataframe(DataframeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if f.NumRows() != 0 || f.Index != nil {
		t.Errorf("rows = %d, index = %v; want empty positional frame",
			f.NumRows(), f.Index)
	}
}

func TestDataframeTransportFailurePropagates(t *testing.T) {
	boom := errors.New("connection refused")
	transport, _ := stubTransport(tableReply{}, boom)
	c := &Client{
		Host: "h", Port: 1, Timeout: time.Second,
		Transport: transport,
	}
	_, err := c.Dataframe(DataframeOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
}

func TestDataframeMalformedReply(t *testing.T) {
	c := &Client{
		Host: "h", Port: 1, Timeout: time.Second,
		Transport: func(string, int, string, time.Duration) ([]byte, error) {
			return []byte("not json"), nil
		},
	}
	_, err := c.Dataframe(DataframeOptions{})
	if !errors.Is(err, ErrBadReply) {
		t.Fatalf("err = %v, want ErrBadReply", err)
	}
}

func TestDataframeFilepathColumnSorted(t *testing.T) {
	c, _ := testClient(t, defaultReply())
	f, err := c.Dataframe(DataframeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	paths, err := f.Column("filepath")
	if err != nil {
		t.Fatal(err)
	}
	want := []any{"/d/1.shot", "/d/2.shot", "/d/3.shot"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("filepaths = %v, want %v", paths, want)
	}
}

func TestLiteralClientDefaults(t *testing.T) {
	// Every test client above is a literal without the unexported
	// logger, so a fetch through one already proves the lazy default.
	c, _ := testClient(t, defaultReply())
	if _, err := c.Dataframe(DataframeOptions{}); err != nil {
		t.Fatalf("Dataframe on literal client: %v", err)
	}
	if (&Client{}).transport() == nil {
		t.Error("nil Transport did not default to the TCP transport")
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain-word.json", "plain-word.json"},
		{`{"a":1}`, `'{"a":1}'`},
		{"it's", `'it'"'"'s'`},
		{"two words", "'two words'"},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
