package sre

import (
	"fmt"

	"github.com/tudurom/rwsh/buffer"
	"golang.org/x/xerrors"
)

// ErrNoMatch is returned when a regular expression address fails to
// find a match, per spec.md §4.1.
var ErrNoMatch = xerrors.New("sre: no match")

// AddressError reports a failed address evaluation — regex not found,
// an invalid line number, or an out-of-range character offset — per
// spec.md §7. It wraps the underlying cause (ErrNoMatch or
// buffer.ErrOutOfRange) for errors.As/errors.Is matching by callers.
type AddressError struct {
	Addr  string
	Cause error
}

func (e *AddressError) Error() string {
	return xerrors.Errorf("sre: address %s: %w", e.Addr, e.Cause).Error()
}

func (e *AddressError) Unwrap() error { return e.Cause }

// Span is a (start, end) rune range into a Buffer, 0 <= start <= end.
type Span struct {
	Start, End int64
}

// AddrKind tags the variant of an Addr node.
type AddrKind int

const (
	AddrChar   AddrKind = iota // #n
	AddrLine                   // n
	AddrRegexp                 // /re/ or ?re?
	AddrStart                  // 0
	AddrEnd                    // $
	AddrDot                    // .
	AddrPlus                   // a1+a2
	AddrMinus                  // a1-a2
	AddrRange                  // a1,a2
	AddrThen                   // a1;a2
)

// Addr is a node in the address AST of spec.md §3/§4.1. Addresses are
// represented as a tagged variant, not an interface hierarchy per node
// kind, to keep the evaluator a single switch rather than a method set
// spread across a dozen types.
type Addr struct {
	Kind  AddrKind
	N     int64  // AddrChar, AddrLine
	Re    string // AddrRegexp
	Rev   bool   // AddrRegexp: true for ?re?
	Left  *Addr  // AddrPlus, AddrMinus, AddrRange, AddrThen
	Right *Addr  // AddrPlus, AddrMinus, AddrRange, AddrThen
}

func Char(n int64) *Addr        { return &Addr{Kind: AddrChar, N: n} }
func Line(n int64) *Addr        { return &Addr{Kind: AddrLine, N: n} }
func RegexpFwd(re string) *Addr { return &Addr{Kind: AddrRegexp, Re: re} }
func RegexpBwd(re string) *Addr { return &Addr{Kind: AddrRegexp, Re: re, Rev: true} }
func Start() *Addr              { return &Addr{Kind: AddrStart} }
func End() *Addr                { return &Addr{Kind: AddrEnd} }
func Dot() *Addr                { return &Addr{Kind: AddrDot} }
func Plus(l, r *Addr) *Addr     { return &Addr{Kind: AddrPlus, Left: l, Right: r} }
func Minus(l, r *Addr) *Addr    { return &Addr{Kind: AddrMinus, Left: l, Right: r} }
func Range(l, r *Addr) *Addr    { return &Addr{Kind: AddrRange, Left: l, Right: r} }
func Then(l, r *Addr) *Addr     { return &Addr{Kind: AddrThen, Left: l, Right: r} }

func (a *Addr) String() string {
	if a == nil {
		return "<nil>"
	}
	switch a.Kind {
	case AddrChar:
		return fmt.Sprintf("#%d", a.N)
	case AddrLine:
		return fmt.Sprintf("%d", a.N)
	case AddrRegexp:
		delim := "/"
		if a.Rev {
			delim = "?"
		}
		return delim + a.Re + delim
	case AddrStart:
		return "0"
	case AddrEnd:
		return "$"
	case AddrDot:
		return "."
	case AddrPlus:
		return a.Left.String() + "+" + a.Right.String()
	case AddrMinus:
		return a.Left.String() + "-" + a.Right.String()
	case AddrRange:
		return a.Left.String() + "," + a.Right.String()
	case AddrThen:
		return a.Left.String() + ";" + a.Right.String()
	}
	return "?"
}

// RegexResolver looks up and compiles a pattern. The evaluator caches
// nothing itself; callers (the command evaluator) own compiled-regexp
// caching across repeated evaluation of the same command tree.
type RegexResolver func(pattern string) (*Matcher, error)

// EvalAddr evaluates an address AST against buf starting from dot, the way
// spec.md §4.1 evaluates "base = the dot when evaluating".
func EvalAddr(a *Addr, buf *buffer.Buffer, dot Span, resolve RegexResolver) (Span, error) {
	if a == nil {
		return dot, nil
	}
	switch a.Kind {
	case AddrChar:
		n := a.N
		if n < 0 {
			n = 0
		}
		if n > buf.Size() {
			n = buf.Size()
		}
		return Span{n, n}, nil

	case AddrLine:
		n := int(a.N)
		if n < 0 {
			s, e, err := buf.LinesBackward(dot.Start, -n)
			if err != nil {
				return Span{}, err
			}
			return Span{s, e}, nil
		}
		s, e, err := buf.LinesForward(dot.End, n)
		if err != nil {
			return Span{}, err
		}
		return Span{s, e}, nil

	case AddrStart:
		return Span{0, 0}, nil

	case AddrEnd:
		return Span{buf.Size(), buf.Size()}, nil

	case AddrDot:
		return dot, nil

	case AddrRegexp:
		return evalRegexp(a, buf, dot, resolve)

	case AddrPlus:
		left, err := EvalAddr(a.Left, buf, dot, resolve)
		if err != nil {
			return Span{}, err
		}
		return EvalAddr(a.Right, buf, Span{left.End, left.End}, resolve)

	case AddrMinus:
		left, err := EvalAddr(a.Left, buf, dot, resolve)
		if err != nil {
			return Span{}, err
		}
		right := reverse(a.Right)
		return EvalAddr(right, buf, Span{left.Start, left.Start}, resolve)

	case AddrRange:
		left := a.Left
		if left == nil {
			left = Start()
		}
		right := a.Right
		if right == nil {
			right = End()
		}
		ls, err := EvalAddr(left, buf, dot, resolve)
		if err != nil {
			return Span{}, err
		}
		rs, err := EvalAddr(right, buf, dot, resolve)
		if err != nil {
			return Span{}, err
		}
		return Span{ls.Start, rs.End}, nil

	case AddrThen:
		left := a.Left
		if left == nil {
			left = Start()
		}
		right := a.Right
		if right == nil {
			right = End()
		}
		ls, err := EvalAddr(left, buf, dot, resolve)
		if err != nil {
			return Span{}, err
		}
		rs, err := EvalAddr(right, buf, ls, resolve)
		if err != nil {
			return Span{}, err
		}
		return Span{ls.Start, rs.End}, nil
	}
	return Span{}, xerrors.Errorf("sre: unknown address kind %d", a.Kind)
}

// reverse flips an address so that its regexp searches run backward,
// as required when it is the right-hand operand of "-" (spec.md §4.1:
// "any /re/ inside must search backward").
func reverse(a *Addr) *Addr {
	if a == nil {
		return nil
	}
	switch a.Kind {
	case AddrRegexp:
		cp := *a
		cp.Rev = !cp.Rev
		return &cp
	case AddrLine:
		cp := *a
		cp.N = -cp.N
		return &cp
	default:
		return a
	}
}

func evalRegexp(a *Addr, buf *buffer.Buffer, dot Span, resolve RegexResolver) (Span, error) {
	m, err := resolve(a.Re)
	if err != nil {
		return Span{}, err
	}
	runes := []rune(buf.String())
	if a.Rev {
		return searchBackward(m, runes, dot.Start)
	}
	return searchForward(m, runes, dot.End)
}

func searchForward(m *Matcher, runes []rune, from int64) (Span, error) {
	if mm, err := tryFind(m, runes, int(from), len(runes)); err != nil {
		return Span{}, err
	} else if mm != nil {
		return Span{mm.Start, mm.End}, nil
	}
	if from > 0 {
		if mm, err := tryFind(m, runes, 0, int(from)); err != nil {
			return Span{}, err
		} else if mm != nil {
			return Span{mm.Start, mm.End}, nil
		}
	}
	return Span{}, ErrNoMatch
}

func tryFind(m *Matcher, runes []rune, from, to int) (*Match, error) {
	matches, err := m.FindAllNonOverlapping(runes, from, to)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// searchBackward finds the last match ending at or before `from`,
// wrapping to search from the end of the buffer if none is found,
// mirroring prevMatch in the teacher's addr.go.
func searchBackward(m *Matcher, runes []rune, from int64) (Span, error) {
	if mm, err := lastMatchBefore(m, runes, 0, int(from)); err != nil {
		return Span{}, err
	} else if mm != nil {
		return Span{mm.Start, mm.End}, nil
	}
	if from < int64(len(runes)) {
		if mm, err := lastMatchBefore(m, runes, int(from), len(runes)); err != nil {
			return Span{}, err
		} else if mm != nil {
			return Span{mm.Start, mm.End}, nil
		}
	}
	return Span{}, ErrNoMatch
}

func lastMatchBefore(m *Matcher, runes []rune, from, to int) (*Match, error) {
	matches, err := m.FindAllNonOverlapping(runes, from, to)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[len(matches)-1], nil
}
