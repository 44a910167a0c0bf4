// Rwsh is the command-line entry point for the RWSH shell: it wires a
// line source (a script file or an interactive terminal) into the
// lang/task/vars stack and maps the resulting status to a process exit
// code per spec.md §6.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/tudurom/rwsh/builtins"
	"github.com/tudurom/rwsh/lang"
	"github.com/tudurom/rwsh/task"
	"github.com/tudurom/rwsh/vars"
	"go.uber.org/zap"
)

var (
	app    = kingpin.New("rwsh", "A shell built on structural regular expressions and pizza pipelines.")
	script = app.Arg("script", "script file to execute; omit for an interactive session").String()
	debug  = app.Flag("debug", "enable verbose structured logging").Bool()
	norc   = app.Flag("norc", "skip sourcing ~/.rwshrc on interactive startup").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := zap.NewNop()
	if *debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "rwsh: failed to start debug logger:", err)
			os.Exit(1)
		}
		log = l
	}
	defer log.Sync()

	v := vars.New()
	r := task.NewRunner(v, os.Stdin, os.Stdout, os.Stderr, log)

	if *script != "" {
		os.Exit(runFile(r, *script))
	}

	if !*norc {
		sourceRC(r, log)
	}
	os.Exit(runInteractive(r))
}

// runFile reads src whole and runs it as one program, the way spec.md
// §6 describes file invocation: exit status is the last command's `?`,
// a parse error yields 2, any other internal failure yields 1.
func runFile(r *task.Runner, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rwsh: %s: %s\n", path, err)
		return 1
	}
	return runProgram(r, string(data))
}

func runProgram(r *task.Runner, src string) int {
	stmts, err := lang.ParseProgram(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rwsh: %s\n", err)
		return 2
	}
	status, err := r.Run(stmts)
	if err != nil {
		if exit, ok := err.(*builtins.ExitRequest); ok {
			return exit.Code
		}
		fmt.Fprintf(os.Stderr, "rwsh: %s\n", err)
		return 1
	}
	return status
}

// sourceRC executes ~/.rwshrc before an interactive session, the way a
// login shell sources its startup file; failures are logged and
// otherwise ignored, since a missing rc file is the common case.
func sourceRC(r *task.Runner, log *zap.Logger) {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Debug("no home directory for rc file", zap.Error(err))
		return
	}
	path := filepath.Join(home, ".rwshrc")
	data, err := os.ReadFile(path)
	if err != nil {
		log.Debug("no rc file", zap.String("path", path), zap.Error(err))
		return
	}
	stmts, err := lang.ParseProgram(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rwsh: %s: %s\n", path, err)
		return
	}
	if _, err := r.Run(stmts); err != nil {
		fmt.Fprintf(os.Stderr, "rwsh: %s: %s\n", path, err)
	}
}

// runInteractive reads statements from stdin one block at a time,
// coloring the prompt when stdin is a terminal, and stops on EOF or an
// `exit` builtin.
func runInteractive(r *task.Runner) int {
	in := bufio.NewReader(os.Stdin)
	interactive := isTerminal(os.Stdin)

	primary := color.New(color.FgCyan, color.Bold)
	secondary := color.New(color.FgCyan)

	status := 0
	for {
		stmt, eof, err := readStatement(in, func(continuation bool) {
			if !interactive {
				return
			}
			if continuation {
				secondary.Fprint(os.Stderr, "... ")
			} else {
				primary.Fprint(os.Stderr, "rwsh> ")
			}
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "rwsh: %s\n", err)
			continue
		}
		if strings.TrimSpace(stmt) == "" {
			if eof {
				return status
			}
			continue
		}

		stmts, perr := lang.ParseProgram(stmt)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "rwsh: %s\n", perr)
			if eof {
				return status
			}
			continue
		}
		var runErr error
		status, runErr = r.Run(stmts)
		if runErr != nil {
			return status
		}
		if eof {
			return status
		}
	}
}

// readStatement accumulates lines from in until a top-level block
// (if/while/switch/match/{ ... }) is balanced or in reaches EOF,
// implementing spec.md §6's "line source interface" as line-at-a-time
// input feeding the whole-program parser rather than a line-at-a-time
// grammar. prompt is called before each physical read, with
// continuation set once a block is already open.
func readStatement(in *bufio.Reader, prompt func(continuation bool)) (string, bool, error) {
	var buf strings.Builder
	depth := 0
	sawAny := false
	for {
		prompt(depth > 0)
		line, err := in.ReadString('\n')
		if line != "" {
			sawAny = true
			buf.WriteString(line)
			depth += blockDelta(line)
		}
		if err != nil {
			if err == io.EOF {
				return buf.String(), true, nil
			}
			return buf.String(), false, err
		}
		if depth <= 0 && sawAny {
			return buf.String(), false, nil
		}
	}
}

// blockDelta counts how much a line opens or closes the top-level
// block nesting, by walking its tokens with the same lexer the parser
// uses — so a keyword inside a quoted word or an SRE stage is never
// mistaken for a block boundary. `if`/`while` bodies are `{ ... }`
// delimited, already counted by the brace tokens; only `switch`/`match`
// open independently of a brace, closed by their own `end` keyword.
func blockDelta(line string) int {
	lex := lang.NewLexer(line)
	delta := 0
	for {
		tok, err := lex.Next()
		if err != nil || tok.Kind == lang.TokEOF {
			return delta
		}
		switch tok.Kind {
		case lang.TokLBrace:
			delta++
		case lang.TokRBrace:
			delta--
		case lang.TokKeyword:
			switch tok.Raw {
			case "switch", "match":
				delta++
			case "end":
				delta--
			}
		}
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
