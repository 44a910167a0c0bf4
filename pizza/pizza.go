// Package pizza implements the pizza pipeline runtime of spec.md §4.3:
// an ordered list of stages, each either an external OS process or an
// in-process SRE command, connected by `|>` (pizza) or `|` (ordinary
// pipe) composition.
//
// The external-stage plumbing follows the teacher's edit.pipe, which
// spawns commands through the shell and wires stdin/stdout with
// exec.Cmd; the multi-stage pipe/goroutine wiring additionally follows
// the os.Pipe + goroutine pattern used by mvdan/sh's interpreter for
// chaining os/exec commands.
package pizza

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/tudurom/rwsh/buffer"
	"github.com/tudurom/rwsh/sre"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// DefaultShell is used to run External stages when $SHELL is unset, as
// in the teacher's edit package.
const DefaultShell = "/bin/sh"

// SpawnError reports a failure to start or run an external pipeline
// stage, per spec.md §7.
type SpawnError struct {
	Argv  []string
	Cause error
}

func (e *SpawnError) Error() string {
	return xerrors.Errorf("pizza: spawn %v: %w", e.Argv, e.Cause).Error()
}

func (e *SpawnError) Unwrap() error { return e.Cause }

// IoError reports a failure reading or writing a pipeline stage's
// stdin/stdout, per spec.md §7.
type IoError struct {
	Op    string
	Cause error
}

func (e *IoError) Error() string {
	return xerrors.Errorf("pizza: %s: %w", e.Op, e.Cause).Error()
}

func (e *IoError) Unwrap() error { return e.Cause }

// Stage is one element of a pizza Pipeline.
type Stage interface {
	isStage()
}

// External is a stage that spawns argv as an OS process. To run a raw
// command line through the user's shell instead, build the stage with
// NewShellExternal.
type External struct {
	Argv []string
	Dir  string
	Env  []string
}

func (External) isStage() {}

// SRE is a stage that evaluates Cmd against an in-memory buffer using
// Resolve to compile the regular expressions it references.
type SRE struct {
	Cmd     *sreCommand
	Resolve sre.RegexResolver
}

// sreCommand aliases sre.Command so callers can construct an SRE stage
// without importing sre directly for the common case.
type sreCommand = sre.Command

func (SRE) isStage() {}

func (External) String() string { return "external" }
func (SRE) String() string      { return "sre" }

// Pipeline is an ordered list of stages connected the way spec.md
// §4.3's composition rules specify.
type Pipeline struct {
	Stages []Stage
}

// Result carries the exit status of the pipeline's last stage. A
// dangling SRE tail stage writes its output to the pipeline's stdout
// directly; Result does not record which kind of stage ran last.
type Result struct {
	ExitStatus int
}

// Run executes the pipeline, connecting stdin/stdout as specified, and
// returns the exit status of the last stage (spec.md §4.5: "set ? to
// the last stage's exit status; 0 for SRE unless it raised a conflict
// or address-failure").
func Run(ctx context.Context, p *Pipeline, stdin io.Reader, stdout, stderr io.Writer) (Result, error) {
	if len(p.Stages) == 0 {
		return Result{ExitStatus: 0}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	failCtx, fail := context.WithCancel(gctx)
	defer fail()
	in := stdin
	var lastStatus int

	for i, st := range p.Stages {
		isLast := i == len(p.Stages)-1
		var out io.Writer
		var nextIn io.Reader
		if isLast {
			out = stdout
		} else {
			pr, pw := io.Pipe()
			out = pw
			nextIn = pr
		}

		status, err := runStage(g, failCtx, fail, st, in, out, stderr, isLast)
		if err != nil {
			return Result{}, err
		}
		if isLast {
			// Only the last stage's status is observable as $?, per
			// spec.md §4.5; status is buffered so this never blocks ahead
			// of the stage actually finishing.
			lastStatus = <-status
		}
		in = nextIn
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{ExitStatus: lastStatus}, nil
}

// runStage starts st asynchronously and returns a channel delivering
// its exit status. On error it calls fail before closing out (if out
// is an io.Closer), so that a downstream stage unblocked by the close
// always observes ctx already canceled, per spec.md §7's "mark the
// pipeline failed; remaining stages drain/exit" — ordering this by
// hand rather than trusting errgroup.WithContext's own cancellation,
// which only fires once this goroutine returns, after the close.
func runStage(g *errgroup.Group, ctx context.Context, fail context.CancelFunc, st Stage, in io.Reader, out, stderr io.Writer, isLast bool) (chan int, error) {
	statusCh := make(chan int, 1)
	finish := func(status int, err error) error {
		if err != nil {
			fail()
		}
		statusCh <- status
		closeIfCloser(out, isLast)
		return err
	}
	switch s := st.(type) {
	case External:
		g.Go(func() error {
			status, err := runExternal(ctx, s, in, out, stderr)
			return finish(status, err)
		})
	case SRE:
		g.Go(func() error {
			status, err := runSRE(ctx, fail, s, in, out, stderr)
			return finish(status, err)
		})
	default:
		return nil, xerrors.Errorf("pizza: unknown stage type %T", st)
	}
	return statusCh, nil
}

func closeIfCloser(w io.Writer, isLast bool) {
	if isLast {
		return
	}
	if c, ok := w.(io.Closer); ok {
		c.Close()
	}
}

func runExternal(ctx context.Context, s External, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if ctx.Err() != nil {
		io.Copy(io.Discard, stdin)
		return 1, nil
	}
	if len(s.Argv) == 0 {
		return 0, xerrors.New("pizza: external stage has no argv")
	}
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if s.Dir != "" {
		cmd.Dir = s.Dir
	}
	if s.Env != nil {
		cmd.Env = s.Env
	}
	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return ee.ExitCode(), nil
		}
		return -1, &SpawnError{Argv: s.Argv, Cause: err}
	}
	return 0, nil
}

// runSRE reads stdin to EOF into a fresh buffer (spec.md §4.3: "the
// external's stdout is read to EOF into the SRE's buffer"), evaluates
// the stage's command with dot reset to (0,0), then writes to stdout
// whatever the command printed (p, =), or the edited buffer's text
// when it printed nothing — the dangling-tail case when
// stdout is the pipeline's own output, or the next stage's input
// buffer otherwise.
//
// Per spec.md §7, a stage that fails its own command (a conflicting
// edit, a bad address) marks the pipeline failed by calling fail before
// it returns, rather than by erroring its errgroup goroutine — that
// keeps the failure a domain-level nonzero status, observable in the
// caller's own stderr write, while still making every later stage see
// ctx already canceled and drain/exit instead of running on an empty
// buffer. fail is called before this function returns, and its caller
// closes this stage's output pipe only after that, so a downstream
// stage unblocked by EOF always observes the cancellation already in
// effect.
func runSRE(ctx context.Context, fail context.CancelFunc, s SRE, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return -1, &IoError{Op: "reading sre stage input", Cause: err}
	}
	if ctx.Err() != nil {
		return 1, nil
	}
	buf := buffer.NewFromBytes(data)

	out := &bytes.Buffer{}
	c := sre.NewContext(buf, sre.Span{}, out, s.Resolve)
	if _, err := sre.Run(c, s.Cmd); err != nil {
		fail()
		io.WriteString(stderr, err.Error()+"\n")
		return 1, nil
	}

	text := out.String()
	if text == "" {
		// A stage whose top-level command never printed (e.g. a bare
		// edit with no trailing p) forwards its buffer verbatim, so it
		// still composes as a text-transform stage in the pipeline.
		text = buf.String()
	}
	if _, err := io.WriteString(stdout, text); err != nil {
		return -1, &IoError{Op: "writing sre stage output", Cause: err}
	}
	return 0, nil
}

// shellFor returns the shell used to run an External stage constructed
// from a raw command line (spec.md §4.7's `calc`/builtins aside, pizza
// stages referencing a raw shell string use this, mirroring the
// teacher's shell()).
func shellFor() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return DefaultShell
}

// NewShellExternal builds an External stage that runs line through the
// user's shell, the way the teacher's Pipe edit does.
func NewShellExternal(line string) External {
	return External{Argv: []string{shellFor(), "-c", line}}
}
