// Command ms is the language's CLI/REPL entrypoint (spec §6): one
// optional positional source-file argument, or an interactive REPL when
// none is given. Grounded on the teacher's cmd/funxy/main.go overall
// shape (read source, compile, run, report errors to stderr) but cut
// down to spec.md's much smaller surface — no bundler, no `build`/`ext`
// subcommands, since spec.md places binary packaging out of scope.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ms-lang/ms/internal/config"
	"github.com/ms-lang/ms/pkg/ms"
)

func main() {
	os.Exit(run())
}

func run() int {
	var trace bool
	var path string

	for _, arg := range os.Args[1:] {
		switch arg {
		case "-trace", "--trace":
			trace = true
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "ms: unknown flag %q\n", arg)
				fmt.Fprintln(os.Stderr, "Usage: ms [-trace] [script]")
				return ms.ExitUsageError
			}
			if path != "" {
				fmt.Fprintf(os.Stderr, "ms: unexpected argument %q\n", arg)
				fmt.Fprintln(os.Stderr, "Usage: ms [-trace] [script]")
				return ms.ExitUsageError
			}
			path = arg
		}
	}

	if os.Getenv("MS_DEBUG") != "" {
		trace = true
	}

	cfg, err := config.Load("ms.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ms: loading ms.yaml: %v\n", err)
		return ms.ExitUsageError
	}

	opts := ms.Options{Stdout: os.Stdout, Config: cfg, Trace: trace}

	if path != "" {
		return ms.RunFile(path, opts)
	}
	return runREPL(opts)
}

// runREPL reads one line at a time, compiles it as a standalone chunk,
// runs it, and prints compile/runtime errors — per spec §6 — reusing a
// single Machine so globals defined on one line are visible on the next.
func runREPL(opts ms.Options) int {
	machine := ms.New(opts)
	defer machine.Close()

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Printf("ms %s — Ctrl-D to exit\n", version)
	}

	scanner := bufio.NewScanner(os.Stdin)
	prompt := func() {
		if interactive {
			fmt.Fprint(os.Stdout, ">>> ")
		}
	}

	prompt()
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			prompt()
			continue
		}
		if _, err := machine.RunSource(line); err != nil {
			ms.Classify(err)
		}
		prompt()
	}
	if interactive {
		fmt.Println()
	}
	return ms.ExitOK
}

// version is a short build identifier; overridable via
// -ldflags "-X main.version=...".
var version = "dev"
