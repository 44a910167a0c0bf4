// Package builtins implements the shell builtins of spec.md §4.7:
// `eval`, `cd`, `exit`, `true`, `false`, and `calc`. (`let` is not a
// table entry here — its flags-and-operator grammar is parsed
// structurally by lang.Parser into an Assign node and evaluated
// directly by the task runtime; re-tokenized `let` text reaching
// `eval` takes that same AST path rather than this table.)
//
// Builtins run in-process rather than forking, the way the teacher's
// edit package runs its own commands (`p`, `=`, …) directly against
// its buffer instead of shelling out — the same "don't fork for what
// you can do in-process" instinct, applied to the task runtime's
// command dispatch instead of SRE's.
package builtins

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tudurom/rwsh/calc"
	"github.com/tudurom/rwsh/vars"
	"golang.org/x/xerrors"
)

// Env is the slice of task.Runner a builtin needs: the variable store,
// the three standard streams, and a way to re-enter the task runtime
// for `eval`. Builtins depends only on this interface, not on the task
// package, so task can depend on builtins without an import cycle.
type Env interface {
	Vars() *vars.Store
	Stdin() io.Reader
	Stdout() io.Writer
	Stderr() io.Writer
	Eval(src string) (int, error)
}

// ExitRequest is returned by the `exit` builtin to unwind the whole
// task runtime, per spec.md §6 ("terminates the shell with code").
// Every statement-evaluation layer in task must check for it with
// errors.As and propagate immediately rather than continuing.
type ExitRequest struct {
	Code int
}

func (e *ExitRequest) Error() string { return "exit" }

// Builtin runs one builtin invocation and returns its exit status.
type Builtin func(env Env, args []string) (int, error)

// Table maps builtin names to their implementation, per spec.md §4.7.
var Table = map[string]Builtin{
	"eval":  Eval,
	"cd":    Cd,
	"exit":  Exit,
	"true":  True,
	"false": False,
	"calc":  Calc,
}

// Lookup returns the builtin named name, if any.
func Lookup(name string) (Builtin, bool) {
	b, ok := Table[name]
	return b, ok
}

// Eval re-tokenizes and executes the concatenation of args, per
// spec.md §4.7.
func Eval(env Env, args []string) (int, error) {
	src := strings.Join(args, " ")
	return env.Eval(src)
}

// Cd changes the process working directory; with no args it changes to
// $HOME, per spec.md §4.7.
func Cd(env Env, args []string) (int, error) {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else {
		home, err := env.Vars().Lookup("HOME", 0)
		if err != nil || len(home) == 0 {
			return 1, xerrors.New("builtins: cd: $HOME is unset")
		}
		dir = home[0]
	}
	if err := os.Chdir(dir); err != nil {
		io.WriteString(env.Stderr(), xerrors.Errorf("builtins: cd %s: %w", dir, err).Error()+"\n")
		return 1, nil
	}
	return 0, nil
}

// Exit terminates the shell with the given code, defaulting to $?, per
// spec.md §4.7/§6.
func Exit(env Env, args []string) (int, error) {
	code := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 1, xerrors.Errorf("builtins: exit: %w", err)
		}
		code = n
	} else if status, err := env.Vars().Lookup("?", 0); err == nil && len(status) > 0 {
		if n, err := strconv.Atoi(status[0]); err == nil {
			code = n
		}
	}
	return code, &ExitRequest{Code: code}
}

// True always exits 0.
func True(env Env, args []string) (int, error) { return 0, nil }

// False always exits 1.
func False(env Env, args []string) (int, error) { return 1, nil }

// Calc evaluates an arithmetic expression and writes the result to
// stdout, per spec.md §4.7.
func Calc(env Env, args []string) (int, error) {
	result, err := calc.Eval(strings.Join(args, " "))
	if err != nil {
		io.WriteString(env.Stderr(), err.Error()+"\n")
		return 1, nil
	}
	io.WriteString(env.Stdout(), result+"\n")
	return 0, nil
}
