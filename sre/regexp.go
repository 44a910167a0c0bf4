package sre

import (
	"github.com/dlclark/regexp2"
	"golang.org/x/xerrors"
)

// RegexError reports a regular expression that failed to compile.
type RegexError struct {
	Pattern string
	Cause   error
}

func (e *RegexError) Error() string {
	return xerrors.Errorf("bad regexp %q: %w", e.Pattern, e.Cause).Error()
}

func (e *RegexError) Unwrap() error { return e.Cause }

// Match describes one match of a regular expression: the overall span
// and any named or positional capture groups, keyed the way §4.5's
// match blocks bind $1..$n and named captures.
type Match struct {
	Start, End int64
	Groups     map[string]string
	Positional []string
}

// Matcher is the injectable regex capability spec.md §9 calls for: a
// matcher exposing named captures and iteration over non-overlapping
// matches with a rune offset mapping. It is backed by regexp2, which —
// unlike the standard library's regexp — exposes named group lookup by
// name directly off a Match without walking SubexpNames.
type Matcher struct {
	re      *regexp2.Regexp
	pattern string
}

// Compile compiles pattern as a multi-line regular expression, the way
// the teacher's address evaluator wraps every pattern in (?m:...).
func Compile(pattern string) (*Matcher, error) {
	re, err := regexp2.Compile(pattern, regexp2.Multiline)
	if err != nil {
		return nil, &RegexError{Pattern: pattern, Cause: err}
	}
	return &Matcher{re: re, pattern: pattern}, nil
}

// Pattern returns the source pattern the Matcher was compiled from.
func (m *Matcher) Pattern() string { return m.pattern }

// FindFrom returns the first match at or after rune offset `from` in s,
// or nil if there is no match.
func (m *Matcher) FindFrom(s []rune, from int) (*Match, error) {
	str := string(s[from:])
	rm, err := m.re.FindStringMatch(str)
	if err != nil {
		return nil, xerrors.Errorf("regexp exec: %w", err)
	}
	if rm == nil {
		return nil, nil
	}
	return toMatch(rm, s, from), nil
}

// FindAllNonOverlapping returns every non-overlapping match of m within
// s[from:to], left to right, advancing one rune past empty matches to
// guarantee termination per spec.md §4.2.
func (m *Matcher) FindAllNonOverlapping(s []rune, from, to int) ([]*Match, error) {
	var out []*Match
	pos := from
	for pos <= to {
		window := string(s[pos:to])
		rm, err := m.re.FindStringMatch(window)
		if err != nil {
			return nil, xerrors.Errorf("regexp exec: %w", err)
		}
		if rm == nil {
			break
		}
		mm := toMatch(rm, s, pos)
		out = append(out, mm)
		if mm.End > mm.Start {
			pos = int(mm.End)
		} else {
			pos = int(mm.End) + 1
		}
	}
	return out, nil
}

func toMatch(rm *regexp2.Match, s []rune, base int) *Match {
	start := base + runeIndex(rm)
	end := start + rm.Length
	mm := &Match{
		Start:      int64(start),
		End:        int64(end),
		Groups:     map[string]string{},
		Positional: nil,
	}
	for _, g := range rm.Groups() {
		if g.Name != "" {
			mm.Groups[g.Name] = g.String()
		}
		mm.Positional = append(mm.Positional, g.String())
	}
	return mm
}

func runeIndex(rm *regexp2.Match) int {
	// regexp2 reports indices in runes when operating on strings, matching
	// the character-position model spec.md §3 uses throughout.
	return rm.Index
}
