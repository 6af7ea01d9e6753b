// Command barrel is an interactive REPL over a weaver store, grounded on the
// teacher's cmd/docdbsh shell (same put/get/delete/exit command set),
// rewired onto peterh/liner for real line editing and history, which the
// teacher's go.mod declared but whose shell never actually imported.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"

	weaver "github.com/aboosoyeed/weaver"
)

const historyFile = ".barrel_history"

func main() {
	dir := flag.String("dir", "./data", "database directory")
	flag.Parse()

	db, err := weaver.Open(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "barrel: open %s: %v\n", *dir, err)
		os.Exit(1)
	}
	defer db.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Println("barrel: type 'help' for commands, 'exit' to quit")
	runRepl(db, line)

	if f, err := os.Create(historyFile); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

func runRepl(db *weaver.DB, line *liner.State) {
	for {
		input, err := line.Prompt("barrel> ")
		if err != nil {
			// io.EOF (Ctrl-D) or liner.ErrPromptAborted (Ctrl-C): quit cleanly.
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !dispatch(db, input) {
			return
		}
	}
}

// dispatch runs one command line and reports whether the REPL should keep
// going.
func dispatch(db *weaver.DB, input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "exit", "quit":
		return false

	case "help":
		printHelp()

	case "put":
		if len(args) < 2 {
			fmt.Println("usage: put <key> <value...>")
			return true
		}
		key := args[0]
		value := strings.Join(args[1:], " ")
		if err := db.Put([]byte(key), []byte(value)); err != nil {
			fmt.Printf("error: %v\n", err)
		}

	case "get":
		if len(args) != 1 {
			fmt.Println("usage: get <key>")
			return true
		}
		value, ok := db.Get([]byte(args[0]))
		if !ok {
			fmt.Println("(not found)")
			return true
		}
		fmt.Println(string(value))

	case "delete", "del":
		if len(args) != 1 {
			fmt.Println("usage: delete <key>")
			return true
		}
		if err := db.Delete([]byte(args[0])); err != nil {
			fmt.Printf("error: %v\n", err)
		}

	case "compact":
		if err := db.RunCompaction(); err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println("ok")
		}

	default:
		fmt.Printf("unknown command %q, type 'help' for commands\n", cmd)
	}

	return true
}

func printHelp() {
	fmt.Println(`commands:
  put <key> <value...>   store value under key
  get <key>              print the value stored under key
  delete <key>           remove key
  compact                run a manual compaction pass
  exit                   quit`)
}
