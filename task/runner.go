// Package task implements the AST evaluator of spec.md §4.5: word
// expansion, pipeline construction and execution, logical operators,
// `let` assignment, control flow, and `match`.
//
// Runner follows the shape of the teacher's edit.Editor: one struct
// threading the mutable state a script needs (here a variable store,
// the three standard streams, a regex-resolver cache, and a logger)
// through a tree of small eval methods, rather than passing that state
// as parameters through every call.
package task

import (
	"context"
	"fmt"
	"io"

	"github.com/tudurom/rwsh/builtins"
	"github.com/tudurom/rwsh/lang"
	"github.com/tudurom/rwsh/sre"
	"github.com/tudurom/rwsh/vars"
	"go.uber.org/zap"
)

// Runner evaluates a parsed script against a variable store and a set
// of standard streams, the way one shell process evaluates its own
// script: single-threaded, with concurrency confined to spawned child
// processes (spec.md §5).
type Runner struct {
	vars   *vars.Store
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *zap.Logger

	regexCache map[string]*sre.Matcher
}

// NewRunner returns a Runner over the given variable store and
// streams. log may be zap.NewNop() for quiet operation.
func NewRunner(v *vars.Store, stdin io.Reader, stdout, stderr io.Writer, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		vars:       v,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		log:        log,
		regexCache: map[string]*sre.Matcher{},
	}
}

// Vars implements builtins.Env.
func (r *Runner) Vars() *vars.Store { return r.vars }

// Stdin implements builtins.Env.
func (r *Runner) Stdin() io.Reader { return r.stdin }

// Stdout implements builtins.Env.
func (r *Runner) Stdout() io.Writer { return r.stdout }

// Stderr implements builtins.Env.
func (r *Runner) Stderr() io.Writer { return r.stderr }

// Eval implements builtins.Env, backing the `eval` builtin: it
// re-parses src as a whole script and runs it against the same Runner
// state, the way the teacher's editor re-dispatches an edit script
// fed back through its own command parser.
func (r *Runner) Eval(src string) (int, error) {
	stmts, err := lang.ParseProgram(src)
	if err != nil {
		return 2, err
	}
	return r.Run(stmts)
}

// Run executes stmts in order, stopping early on an *builtins.ExitRequest
// and otherwise returning the exit status of the last statement run.
func (r *Runner) Run(stmts []lang.Stmt) (int, error) {
	status := 0
	for _, stmt := range stmts {
		s, err := r.execStmt(stmt)
		if err != nil {
			return s, err
		}
		status = s
	}
	r.vars.SetStatus(status)
	return status, nil
}

// execStmt dispatches one statement and applies spec.md §7's blanket
// policy for uncaught runtime errors: anything other than a genuine
// *builtins.ExitRequest is reported as a diagnostic and resolved to
// exit status 1 here, so callers above this layer (switch/match/let
// included, not just pipelines) never see a raw Go error escape.
func (r *Runner) execStmt(stmt lang.Stmt) (int, error) {
	status, err := r.dispatchStmt(stmt)
	if err != nil {
		if _, ok := err.(*builtins.ExitRequest); ok {
			return status, err
		}
		return r.logDiagnostic(err), nil
	}
	return status, nil
}

func (r *Runner) dispatchStmt(stmt lang.Stmt) (int, error) {
	switch s := stmt.(type) {
	case *lang.Pipeline:
		return r.execPipeline(s)
	case *lang.AndOr:
		return r.execAndOr(s)
	case *lang.Block:
		r.vars.PushFrame()
		defer r.vars.PopFrame()
		return r.execBody(s.Stmts)
	case *lang.If:
		return r.execIf(s)
	case *lang.While:
		return r.execWhile(s)
	case *lang.Switch:
		return r.execSwitch(s)
	case *lang.Match:
		return r.execMatch(s)
	case *lang.LetStmt:
		return r.execLet(s.Assign)
	default:
		return 1, fmt.Errorf("task: unhandled statement type %T", stmt)
	}
}

// execBody runs stmts in the caller's current frame (the frame push,
// if any, already happened), returning the last status.
func (r *Runner) execBody(stmts []lang.Stmt) (int, error) {
	status := 0
	for _, stmt := range stmts {
		s, err := r.execStmt(stmt)
		if err != nil {
			return s, err
		}
		status = s
	}
	return status, nil
}

func (r *Runner) execAndOr(ao *lang.AndOr) (int, error) {
	left, err := r.execStmt(ao.Left)
	if err != nil {
		return left, err
	}
	if ao.Op == "&&" && left != 0 {
		return left, nil
	}
	if ao.Op == "||" && left == 0 {
		return left, nil
	}
	return r.execStmt(ao.Right)
}

func (r *Runner) execIf(s *lang.If) (int, error) {
	status, err := r.execStmt(s.Cond)
	if err != nil {
		return status, err
	}
	if status == 0 {
		r.vars.PushFrame()
		defer r.vars.PopFrame()
		return r.execBody(s.Then)
	}
	for _, elif := range s.Elifs {
		status, err = r.execStmt(elif.Cond)
		if err != nil {
			return status, err
		}
		if status == 0 {
			r.vars.PushFrame()
			defer r.vars.PopFrame()
			return r.execBody(elif.Then)
		}
	}
	if s.Else != nil {
		r.vars.PushFrame()
		defer r.vars.PopFrame()
		return r.execBody(s.Else)
	}
	return 0, nil
}

func (r *Runner) execWhile(s *lang.While) (int, error) {
	status := 0
	for {
		condStatus, err := r.execStmt(s.Cond)
		if err != nil {
			return condStatus, err
		}
		if condStatus != 0 {
			return status, nil
		}
		r.vars.PushFrame()
		status, err = r.execBody(s.Body)
		r.vars.PopFrame()
		if err != nil {
			return status, err
		}
	}
}

// logDiagnostic reports an uncaught runtime error to stderr the way
// spec.md §7 requires ("rwsh: " prefix) and mirrors it to the debug
// log, then resolves it to exit status 1.
func (r *Runner) logDiagnostic(err error) int {
	fmt.Fprintf(r.stderr, "rwsh: %s\n", err.Error())
	r.log.Debug("runtime error", zap.Error(err))
	return 1
}

func (r *Runner) resolveRegex(pattern string) (*sre.Matcher, error) {
	if m, ok := r.regexCache[pattern]; ok {
		return m, nil
	}
	m, err := sre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.regexCache[pattern] = m
	return m, nil
}

// spawnContext is a fresh background context for one pipeline run;
// RWSH has no internal cancellation or timeouts (spec.md §5).
func spawnContext() context.Context { return context.Background() }

var _ builtins.Env = (*Runner)(nil)
