package main

import (
	"fmt"
	"strings"

	"github.com/c-bata/go-prompt"
)

var shellCommands = []prompt.Suggest{
	{Text: "fetch", Description: "fetch the current dataframe"},
	{Text: "describe", Description: "summarize a dataframe column"},
	{Text: "globals", Description: "show a shot file's globals"},
	{Text: "results", Description: "show a routine's saved results"},
	{Text: "traces", Description: "list a shot file's traces"},
	{Text: "help", Description: "show usage"},
	{Text: "exit", Description: "leave the shell"},
}

var shellFlags = map[string][]prompt.Suggest{
	"fetch": {
		{Text: "-n", Description: "limit to the most recent N sequences"},
		{Text: "-filter", Description: "server-side filter as JSON"},
		{Text: "-o", Description: "write to a parquet file"},
		{Text: "-host"}, {Text: "-port"}, {Text: "-timeout"},
	},
	"describe": {
		{Text: "-col", Description: "column to summarize"},
		{Text: "-n"}, {Text: "-filter"}, {Text: "-host"}, {Text: "-port"},
	},
	"globals": {{Text: "-group", Description: "globals sub-group"}},
	"results": {{Text: "-group", Description: "results group"}},
}

func completer(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	fields := strings.Fields(text)

	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(text, " ")) {
		return prompt.FilterHasPrefix(shellCommands, d.GetWordBeforeCursor(), true)
	}
	if flags, ok := shellFlags[fields[0]]; ok {
		return prompt.FilterHasPrefix(flags, d.GetWordBeforeCursor(), true)
	}
	return nil
}

func executor(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	var err error
	switch args[0] {
	case "exit", "quit":
		fmt.Println("bye")
		// go-prompt's Run loop has no clean return; the conventional
		// exit path is to leave via the executor.
		panic(exitShell{})
	case "help":
		fmt.Println("commands: fetch, describe, globals, results, traces, exit")
		return
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
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

type exitShell struct{}

func cmdShell() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(exitShell); ok {
				return
			}
			panic(r)
		}
	}()

	p := prompt.New(executor, completer,
		prompt.OptionPrefix("lyse> "),
		prompt.OptionTitle("lysectl"),
	)
	p.Run()
	return nil
}
