// lysectl inspects shot files and fetches dataframes from a running
// lyse GUI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/labscript-suite/lyse-go/frame"
	"github.com/labscript-suite/lyse-go/internal/logging"
	"github.com/labscript-suite/lyse-go/remote"
	"github.com/labscript-suite/lyse-go/run"
)

// Version is set at build time via ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `lysectl %s - lyse analysis client

Usage:
  lysectl [-v] fetch    [-n N] [-filter JSON] [-o FILE.parquet] [-host H] [-port P]
  lysectl [-v] describe -col "COLUMN" [fetch flags]
  lysectl [-v] globals  FILE [-group NAME]
  lysectl [-v] results  FILE -group NAME
  lysectl [-v] traces   FILE
  lysectl [-v] shell

-v enables debug logging.
`, Version)
	os.Exit(2)
}

func main() {
	args := os.Args[1:]
	level := slog.LevelWarn
	if len(args) > 0 && args[0] == "-v" {
		level = slog.LevelDebug
		args = args[1:]
	}
	logging.Init(level, false)

	if len(args) < 1 {
		usage()
	}

	var err error
	switch args[0] {
	case "fetch":
		err = cmdFetch(args[1:])
	case "describe":
		err = cmdDescribe(args[1:])
	case "globals":
		err = cmdGlobals(args[1:])
	case "results":
		err = cmdResults(args[1:])
	case "traces":
		err = cmdTraces(args[1:])
	case "shell":
		err = cmdShell()
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "lysectl: unknown command %q\n", args[0])
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "lysectl: %v\n", err)
		os.Exit(1)
	}
}

// fetchFlags adds the shared dataframe-fetch flags to fs.
type fetchFlags struct {
	n       *int
	filter  *string
	host    *string
	port    *int
	timeout *time.Duration
}

func addFetchFlags(fs *flag.FlagSet) fetchFlags {
	return fetchFlags{
		n:       fs.Int("n", -1, "limit to the most recent N sequences"),
		filter:  fs.String("filter", "", "server-side filter as JSON object"),
		host:    fs.String("host", "", "GUI host (default from labconfig)"),
		port:    fs.Int("port", 0, "GUI port (default from labconfig)"),
		timeout: fs.Duration("timeout", 0, "request timeout"),
	}
}

func (ff fetchFlags) fetch() (*frame.Frame, error) {
	var copts []remote.ClientOption
	if *ff.host != "" {
		copts = append(copts, remote.WithHost(*ff.host))
	}
	if *ff.port > 0 {
		copts = append(copts, remote.WithPort(*ff.port))
	}
	if *ff.timeout > 0 {
		copts = append(copts, remote.WithTimeout(*ff.timeout))
	}
	client := remote.NewClient(copts...)

	var opts remote.DataframeOptions
	if *ff.n >= 0 {
		opts.NSequences = remote.NSequences(*ff.n)
	}
	if *ff.filter != "" {
		filter, err := parseFilter(*ff.filter)
		if err != nil {
			return nil, err
		}
		opts.Filter = filter
	}
	return client.Dataframe(opts)
}

func cmdFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	ff := addFetchFlags(fs)
	out := fs.String("o", "", "write the frame to a parquet file instead of printing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := ff.fetch()
	if err != nil {
		return err
	}
	if *out != "" {
		if err := f.WriteParquetFile(*out); err != nil {
			return err
		}
		fmt.Printf("wrote %d rows to %s\n", f.NumRows(), *out)
		return nil
	}
	printFrame(f)
	return nil
}

func cmdDescribe(args []string) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	ff := addFetchFlags(fs)
	col := fs.String("col", "", `column to summarize, levels joined by " / "`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *col == "" {
		return fmt.Errorf("describe: -col is required")
	}

	f, err := ff.fetch()
	if err != nil {
		return err
	}
	stats, err := f.Describe(strings.Split(*col, frame.LevelSeparator)...)
	if err != nil {
		return err
	}
	fmt.Printf("count  %d\n", stats.Count)
	fmt.Printf("mean   %g\n", stats.Mean)
	fmt.Printf("min    %g\n", stats.Min)
	fmt.Printf("max    %g\n", stats.Max)
	fmt.Printf("p50    %g\n", stats.P50)
	fmt.Printf("p90    %g\n", stats.P90)
	fmt.Printf("p99    %g\n", stats.P99)
	return nil
}

func cmdGlobals(args []string) error {
	path, rest, err := takePath("globals", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("globals", flag.ContinueOnError)
	group := fs.String("group", "", "globals sub-group")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	r, err := run.New(path, run.ReadOnly())
	if err != nil {
		return err
	}
	globals, err := r.Globals(*group)
	if err != nil {
		return err
	}
	printMap(globals)
	return nil
}

func cmdResults(args []string) error {
	path, rest, err := takePath("results", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	group := fs.String("group", "", "results group (routine name)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *group == "" {
		return fmt.Errorf("results: -group is required")
	}

	r, err := run.New(path, run.ReadOnly())
	if err != nil {
		return err
	}
	attrs, err := r.Attrs("results/" + *group)
	if err != nil {
		return err
	}
	printMap(attrs)
	return nil
}

func cmdTraces(args []string) error {
	path, _, err := takePath("traces", args)
	if err != nil {
		return err
	}
	r, err := run.New(path, run.ReadOnly())
	if err != nil {
		return err
	}
	names, err := r.TraceNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func parseFilter(raw string) (map[string]any, error) {
	filter := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, fmt.Errorf("parse -filter: %w", err)
	}
	return filter, nil
}

func takePath(cmd string, args []string) (string, []string, error) {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return "", nil, fmt.Errorf("%s: shot file path required", cmd)
	}
	return args[0], args[1:], nil
}

func printMap(m map[string]any) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-30s %v\n", name, m[name])
	}
}

func printFrame(f *frame.Frame) {
	names := make([]string, len(f.Columns))
	for i, col := range f.Columns {
		end := len(col)
		for end > 0 && col[end-1] == "" {
			end--
		}
		names[i] = strings.Join(col[:end], frame.LevelSeparator)
	}
	fmt.Println(strings.Join(names, "\t"))
	for _, row := range f.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
	fmt.Printf("(%d rows)\n", f.NumRows())
}
