// Package sre implements the Structural Regular Expression address and
// command algebra of spec.md §4: evaluating addresses over a text
// buffer, dispatching simple, loop, and parallel-group commands, and
// applying edits through a deferred edit log.
//
// The design follows the teacher's edit package (address calculus,
// change/print/where commands, an append-only log of pending changes)
// but trades its interface-per-address-kind hierarchy for a tagged
// variant AST (see Addr in address.go and Command below), and trades
// its disk-backed undo log for a single-stage, in-memory EditLog since
// an SRE stage's buffer does not persist past one pizza pipeline stage.
package sre

import (
	"fmt"
	"io"

	"github.com/tudurom/rwsh/buffer"
	"golang.org/x/xerrors"
)

// Op tags the variant of a Command node.
type Op int

const (
	OpAppend Op = iota // a/str/
	OpInsert           // i/str/
	OpChange           // c/str/
	OpDelete           // d
	OpPrint            // p
	OpWhere            // =
	OpGuard            // g/re/ C
	OpVeto             // v/re/ C
	OpLoopX            // x/re/ C
	OpLoopY            // y/re/ C
	OpParallel         // { C1; C2; ... }
)

// Command is one node of an SRE command tree, spec.md §3's
// "{address?, op, args, child?}" record represented as a tagged
// variant: Arg holds literal text for a/c/i and a regexp pattern for
// g/v/x/y, Child holds the nested command for g/v/x/y, and Children
// holds the sibling list for a parallel group.
type Command struct {
	Addr     *Addr
	Op       Op
	Arg      string
	Child    *Command
	Children []*Command
}

func Append(a *Addr, text string) *Command { return &Command{Addr: a, Op: OpAppend, Arg: text} }
func Insert(a *Addr, text string) *Command { return &Command{Addr: a, Op: OpInsert, Arg: text} }
func Change(a *Addr, text string) *Command { return &Command{Addr: a, Op: OpChange, Arg: text} }
func Delete(a *Addr) *Command               { return &Command{Addr: a, Op: OpDelete} }
func Print(a *Addr) *Command                { return &Command{Addr: a, Op: OpPrint} }
func Where(a *Addr) *Command                { return &Command{Addr: a, Op: OpWhere} }
func Guard(a *Addr, re string, c *Command) *Command {
	return &Command{Addr: a, Op: OpGuard, Arg: re, Child: c}
}
func Veto(a *Addr, re string, c *Command) *Command {
	return &Command{Addr: a, Op: OpVeto, Arg: re, Child: c}
}
func LoopX(a *Addr, re string, c *Command) *Command {
	return &Command{Addr: a, Op: OpLoopX, Arg: re, Child: c}
}
func LoopY(a *Addr, re string, c *Command) *Command {
	return &Command{Addr: a, Op: OpLoopY, Arg: re, Child: c}
}
func Parallel(a *Addr, children ...*Command) *Command {
	return &Command{Addr: a, Op: OpParallel, Children: children}
}

// Result is the outcome of evaluating a Command: the span dot was set
// to, and, when the command directly produced an edit, the EditLog
// index that edit was recorded at so the caller can resolve its final
// post-apply position once the stage's whole log has been applied.
type Result struct {
	Span    Span
	EditIdx int // -1 if this result did not come from a direct edit
}

// Context is the per-stage evaluation state of spec.md §4.2: a buffer,
// a current dot, an edit log, and the regex resolver used to compile
// address and command patterns. Context is forked (not mutated) when
// entering a parallel group's branches.
type Context struct {
	Buf     *buffer.Buffer
	Dot     Span
	Out     io.Writer
	Resolve RegexResolver
	Log     *EditLog
	Origin  string
}

// NewContext returns a fresh top-level Context for one SRE stage.
func NewContext(buf *buffer.Buffer, dot Span, out io.Writer, resolve RegexResolver) *Context {
	return &Context{Buf: buf, Dot: dot, Out: out, Resolve: resolve, Log: NewEditLog()}
}

// Run evaluates cmd against ctx, then applies the accumulated edit log
// to ctx.Buf, returning dot translated into the post-edit buffer's
// coordinates — the contract spec.md §3 requires ("dot after any
// command is ... a valid address into the stage's post-edit buffer").
func Run(ctx *Context, cmd *Command) (Span, error) {
	res, err := Eval(ctx, cmd)
	if err != nil {
		if xerrors.Is(err, ErrNoMatch) || xerrors.Is(err, buffer.ErrOutOfRange) {
			return Span{}, &AddressError{Addr: cmd.Addr.String(), Cause: err}
		}
		return Span{}, err
	}
	if err := ctx.Log.Apply(ctx.Buf); err != nil {
		return Span{}, err
	}
	if res.EditIdx >= 0 {
		return ctx.Log.FinalSpan(res.EditIdx), nil
	}
	return Span{ctx.Log.Translate(res.Span.Start), ctx.Log.Translate(res.Span.End)}, nil
}

// Eval evaluates one Command against ctx's unmutated buffer, recording
// any edits into ctx.Log rather than applying them (spec.md §4.2).
func Eval(ctx *Context, cmd *Command) (Result, error) {
	d := ctx.Dot
	if cmd.Addr != nil {
		var err error
		d, err = EvalAddr(cmd.Addr, ctx.Buf, ctx.Dot, ctx.Resolve)
		if err != nil {
			return Result{}, err
		}
	}

	switch cmd.Op {
	case OpPrint:
		text := ctx.Buf.Slice(d.Start, d.End)
		if _, err := io.WriteString(ctx.Out, buffer.EnsureTrailingNewline(text)); err != nil {
			return Result{}, xerrors.Errorf("sre: print: %w", err)
		}
		ctx.Dot = d
		return Result{Span: d, EditIdx: -1}, nil

	case OpWhere:
		if _, err := fmt.Fprintf(ctx.Out, "#%d,#%d\n", d.Start, d.End); err != nil {
			return Result{}, xerrors.Errorf("sre: where: %w", err)
		}
		ctx.Dot = d
		return Result{Span: d, EditIdx: -1}, nil

	case OpAppend:
		idx := ctx.Log.Add(d.End, d.End, cmd.Arg, ctx.Origin)
		nd := Span{d.End, d.End + int64(len([]rune(cmd.Arg)))}
		ctx.Dot = nd
		return Result{Span: nd, EditIdx: idx}, nil

	case OpInsert:
		idx := ctx.Log.Add(d.Start, d.Start, cmd.Arg, ctx.Origin)
		nd := Span{d.Start, d.Start + int64(len([]rune(cmd.Arg)))}
		ctx.Dot = nd
		return Result{Span: nd, EditIdx: idx}, nil

	case OpChange:
		idx := ctx.Log.Add(d.Start, d.End, cmd.Arg, ctx.Origin)
		nd := Span{d.Start, d.Start + int64(len([]rune(cmd.Arg)))}
		ctx.Dot = nd
		return Result{Span: nd, EditIdx: idx}, nil

	case OpDelete:
		idx := ctx.Log.Add(d.Start, d.End, "", ctx.Origin)
		nd := Span{d.Start, d.Start}
		ctx.Dot = nd
		return Result{Span: nd, EditIdx: idx}, nil

	case OpGuard:
		matched, err := matchesWithin(ctx, cmd.Arg, d)
		if err != nil {
			return Result{}, err
		}
		if !matched {
			ctx.Dot = d
			return Result{Span: d, EditIdx: -1}, nil
		}
		return evalChild(ctx, cmd.Child, d)

	case OpVeto:
		matched, err := matchesWithin(ctx, cmd.Arg, d)
		if err != nil {
			return Result{}, err
		}
		if matched {
			ctx.Dot = d
			return Result{Span: d, EditIdx: -1}, nil
		}
		return evalChild(ctx, cmd.Child, d)

	case OpLoopX:
		return evalLoopX(ctx, cmd, d)

	case OpLoopY:
		return evalLoopY(ctx, cmd, d)

	case OpParallel:
		return evalParallel(ctx, cmd, d)
	}
	return Result{}, xerrors.Errorf("sre: unknown op %d", cmd.Op)
}

func matchesWithin(ctx *Context, pattern string, d Span) (bool, error) {
	m, err := ctx.Resolve(pattern)
	if err != nil {
		return false, err
	}
	runes := []rune(ctx.Buf.String())
	matches, err := m.FindAllNonOverlapping(runes, int(d.Start), int(d.End))
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

func evalChild(ctx *Context, child *Command, dot Span) (Result, error) {
	ctx.Dot = dot
	res, err := Eval(ctx, child)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func evalLoopX(ctx *Context, cmd *Command, d Span) (Result, error) {
	m, err := ctx.Resolve(cmd.Arg)
	if err != nil {
		return Result{}, err
	}
	runes := []rune(ctx.Buf.String())
	matches, err := m.FindAllNonOverlapping(runes, int(d.Start), int(d.End))
	if err != nil {
		return Result{}, err
	}
	last := Result{Span: d, EditIdx: -1}
	baseOrigin := ctx.Origin
	for i, mm := range matches {
		ctx.Origin = fmt.Sprintf("%s.x%d", baseOrigin, i)
		last, err = evalChild(ctx, cmd.Child, Span{mm.Start, mm.End})
		if err != nil {
			return Result{}, err
		}
	}
	ctx.Origin = baseOrigin
	return last, nil
}

func evalLoopY(ctx *Context, cmd *Command, d Span) (Result, error) {
	m, err := ctx.Resolve(cmd.Arg)
	if err != nil {
		return Result{}, err
	}
	runes := []rune(ctx.Buf.String())
	matches, err := m.FindAllNonOverlapping(runes, int(d.Start), int(d.End))
	if err != nil {
		return Result{}, err
	}
	spans := partitionSpans(d, matches)
	last := Result{Span: d, EditIdx: -1}
	baseOrigin := ctx.Origin
	for i, s := range spans {
		ctx.Origin = fmt.Sprintf("%s.y%d", baseOrigin, i)
		last, err = evalChild(ctx, cmd.Child, s)
		if err != nil {
			return Result{}, err
		}
	}
	ctx.Origin = baseOrigin
	return last, nil
}

// partitionSpans returns the spans between successive matches (and
// before the first / after the last) within d, so that y and x
// together partition d: every character is visited by exactly one of
// the two (spec.md §8's testable property).
func partitionSpans(d Span, matches []*Match) []Span {
	if len(matches) == 0 {
		return []Span{d}
	}
	spans := make([]Span, 0, len(matches)+1)
	pos := d.Start
	for _, mm := range matches {
		spans = append(spans, Span{pos, mm.Start})
		pos = mm.End
	}
	spans = append(spans, Span{pos, d.End})
	return spans
}

func evalParallel(ctx *Context, cmd *Command, d Span) (Result, error) {
	for i, child := range cmd.Children {
		branch := &Context{
			Buf:     ctx.Buf,
			Dot:     d,
			Out:     ctx.Out,
			Resolve: ctx.Resolve,
			Log:     NewEditLog(),
			Origin:  fmt.Sprintf("%s/%d", ctx.Origin, i),
		}
		if _, err := Eval(branch, child); err != nil {
			return Result{}, err
		}
		ctx.Log.Merge(branch.Log)
	}
	ctx.Dot = d
	return Result{Span: d, EditIdx: -1}, nil
}
