package sre

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/xerrors"
)

// ParseError reports a syntax error in SRE address or command text,
// with the rune offset into the input it was found at.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return xerrors.Errorf("sre: parse error at %d: %s", e.Pos, e.Message).Error()
}

// scanner is a minimal rune cursor, in the spirit of the teacher's
// io.RuneScanner-based Addr/Ed parsers but operating on an in-memory
// slice since SRE programs are parsed from an already-tokenized shell
// word, never streamed.
type scanner struct {
	rs  []rune
	pos int
}

func newScanner(s string) *scanner { return &scanner{rs: []rune(s)} }

func (s *scanner) peek() (rune, bool) {
	if s.pos >= len(s.rs) {
		return 0, false
	}
	return s.rs[s.pos], true
}

func (s *scanner) next() (rune, bool) {
	r, ok := s.peek()
	if ok {
		s.pos++
	}
	return r, ok
}

func (s *scanner) skipSpace() {
	for {
		r, ok := s.peek()
		if !ok || !unicode.IsSpace(r) {
			return
		}
		s.pos++
	}
}

func (s *scanner) errorf(msg string) error {
	return &ParseError{Pos: s.pos, Message: msg}
}

// ParseAddr parses a compound address per spec.md §4.1's grammar and
// returns it along with the remaining unparsed text.
func ParseAddr(text string) (*Addr, string, error) {
	s := newScanner(text)
	a, err := parseRangeAddr(s)
	if err != nil {
		return nil, "", err
	}
	return a, string(s.rs[s.pos:]), nil
}

func parseRangeAddr(s *scanner) (*Addr, error) {
	left, err := parseAdditiveAddr(s)
	if err != nil {
		return nil, err
	}
	for {
		s.skipSpace()
		r, ok := s.peek()
		if !ok || (r != ',' && r != ';') {
			return left, nil
		}
		s.next()
		right, err := parseAdditiveAddr(s)
		if err != nil {
			return nil, err
		}
		if r == ',' {
			left = Range(left, right)
		} else {
			left = Then(left, right)
		}
	}
}

func parseAdditiveAddr(s *scanner) (*Addr, error) {
	left, err := parseSimpleAddr(s)
	if err != nil {
		return nil, err
	}
	for {
		s.skipSpace()
		r, ok := s.peek()
		if !ok || (r != '+' && r != '-') {
			return left, nil
		}
		s.next()
		right, err := parseSimpleAddr(s)
		if err != nil {
			return nil, err
		}
		if right == nil {
			right = Line(1)
		}
		if left == nil {
			left = Dot()
		}
		if r == '+' {
			left = Plus(left, right)
		} else {
			left = Minus(left, right)
		}
	}
}

const digits = "0123456789"

func parseSimpleAddr(s *scanner) (*Addr, error) {
	s.skipSpace()
	r, ok := s.peek()
	if !ok {
		return nil, nil
	}
	switch {
	case r == '#':
		s.next()
		n, err := scanNumber(s, 1)
		if err != nil {
			return nil, err
		}
		return Char(n), nil
	case r == '0':
		s.next()
		return Start(), nil
	case strings.ContainsRune(digits, r):
		n, err := scanNumber(s, 0)
		if err != nil {
			return nil, err
		}
		return Line(n), nil
	case r == '/':
		s.next()
		re, err := scanDelimited(s, '/')
		if err != nil {
			return nil, err
		}
		return RegexpFwd(re), nil
	case r == '?':
		s.next()
		re, err := scanDelimited(s, '?')
		if err != nil {
			return nil, err
		}
		return RegexpBwd(re), nil
	case r == '$':
		s.next()
		return End(), nil
	case r == '.':
		s.next()
		return Dot(), nil
	default:
		return nil, nil
	}
}

func scanNumber(s *scanner, def int64) (int64, error) {
	start := s.pos
	for {
		r, ok := s.peek()
		if !ok || !unicode.IsDigit(r) {
			break
		}
		s.next()
	}
	if s.pos == start {
		return def, nil
	}
	n, err := strconv.ParseInt(string(s.rs[start:s.pos]), 10, 64)
	if err != nil {
		return 0, s.errorf("bad number: " + err.Error())
	}
	return n, nil
}

// scanDelimited reads runes up to an unescaped delim or end of input,
// per spec.md §4.4 ("any non-space char may serve as delimiter ... \n,
// \t, \\, \/ are escapes").
func scanDelimited(s *scanner, delim rune) (string, error) {
	var out []rune
	for {
		r, ok := s.next()
		if !ok {
			return string(out), nil
		}
		if r == delim {
			return string(out), nil
		}
		if r == '\\' {
			r2, ok := s.next()
			if !ok {
				out = append(out, '\\')
				return string(out), nil
			}
			switch r2 {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '\\':
				out = append(out, '\\')
			case delim:
				out = append(out, delim)
			default:
				out = append(out, '\\', r2)
			}
			continue
		}
		out = append(out, r)
	}
}

// ParseCommand parses one SRE command — a simple command, a loop, a
// guard, or a parallel group — per spec.md §4.2/§4.4.
func ParseCommand(text string) (*Command, string, error) {
	s := newScanner(text)
	cmd, err := parseCommand(s)
	if err != nil {
		return nil, "", err
	}
	return cmd, string(s.rs[s.pos:]), nil
}

func parseCommand(s *scanner) (*Command, error) {
	s.skipSpace()
	if r, ok := s.peek(); ok && r == '{' {
		return parseParallel(s)
	}
	addr, err := parseRangeAddr(s)
	if err != nil {
		return nil, err
	}
	s.skipSpace()
	r, ok := s.next()
	if !ok {
		return nil, s.errorf("expected command after address")
	}
	switch r {
	case 'a', 'c', 'i':
		delim, ok := s.next()
		if !ok {
			return nil, s.errorf("expected delimiter")
		}
		text, err := scanDelimited(s, delim)
		if err != nil {
			return nil, err
		}
		switch r {
		case 'a':
			return Append(addr, text), nil
		case 'c':
			return Change(addr, text), nil
		default:
			return Insert(addr, text), nil
		}
	case 'd':
		return Delete(addr), nil
	case 'p':
		return Print(addr), nil
	case '=':
		return Where(addr), nil
	case 'g', 'v', 'x', 'y':
		delim, ok := s.next()
		if !ok {
			return nil, s.errorf("expected delimiter")
		}
		re, err := scanDelimited(s, delim)
		if err != nil {
			return nil, err
		}
		child, err := parseCommand(s)
		if err != nil {
			return nil, err
		}
		switch r {
		case 'g':
			return Guard(addr, re, child), nil
		case 'v':
			return Veto(addr, re, child), nil
		case 'x':
			return LoopX(addr, re, child), nil
		default:
			return LoopY(addr, re, child), nil
		}
	default:
		return nil, s.errorf("unknown command: " + string(r))
	}
}

func parseParallel(s *scanner) (*Command, error) {
	s.next() // consume '{'
	var children []*Command
	for {
		s.skipSpace()
		if r, ok := s.peek(); ok && r == '}' {
			s.next()
			return Parallel(nil, children...), nil
		}
		c, err := parseCommand(s)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
		s.skipSpace()
		if r, ok := s.peek(); ok && r == ';' {
			s.next()
		}
	}
}
