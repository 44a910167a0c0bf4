package lang

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/xerrors"
)

// hasGlobMeta reports whether s contains a glob metachar (*, ?, or [);
// a preceding backslash does not exempt it.
func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// ParseWordText turns one lexer WORD token's raw text (bare segments,
// '...'/"..." quoted segments, and $ interpolation, still concatenated
// as the lexer captured them) into a Word AST, per spec.md §4.4:
// adjacent segments concatenate into one word; bare segments undergo
// tilde expansion at the start and globbing; quoted segments do not.
func ParseWordText(raw string) (Word, error) {
	rs := []rune(raw)
	pos := 0
	var parts []WordPart
	var bare strings.Builder

	flushBare := func() {
		if bare.Len() == 0 {
			return
		}
		s := bare.String()
		if hasGlobMeta(s) {
			parts = append(parts, Glob{Pattern: s})
		} else {
			parts = append(parts, Lit{Value: s})
		}
		bare.Reset()
	}

	first := true
	for pos < len(rs) {
		r := rs[pos]
		switch {
		case r == '\'':
			flushBare()
			pos++
			start := pos
			for pos < len(rs) && rs[pos] != '\'' {
				pos++
			}
			if pos >= len(rs) {
				return Word{}, xerrors.New("lang: unterminated single-quoted string")
			}
			parts = append(parts, Lit{Value: string(rs[start:pos])})
			pos++

		case r == '"':
			flushBare()
			pos++
			dqParts, np, err := parseDoubleQuoted(rs, pos)
			if err != nil {
				return Word{}, err
			}
			parts = append(parts, dqParts...)
			pos = np

		case r == '$':
			flushBare()
			part, np, err := parseDollar(rs, pos, false)
			if err != nil {
				return Word{}, err
			}
			parts = append(parts, part)
			pos = np

		case first && r == '~':
			// Tilde expansion is represented as a Lit carrying the raw
			// "~" or "~user" prefix; the task runtime's word-expansion
			// step resolves it against os/user, matching the teacher-less,
			// spec-only nature of this feature (no example repo does
			// shell-style tilde expansion).
			start := pos
			pos++
			for pos < len(rs) && isTildeNameChar(rs[pos]) {
				pos++
			}
			parts = append(parts, Lit{Value: "\x00TILDE\x00" + string(rs[start:pos])})

		default:
			bare.WriteRune(r)
			pos++
		}
		first = false
	}
	flushBare()
	return Word{Parts: parts}, nil
}

// ParseInterpolatedText turns raw SRE pizza-stage text into a Word,
// expanding only `$name`/`$name[idx]`/`$( … )` references and leaving
// every other character — including ', ", and glob metacharacters,
// which belong to SRE's own delimiter and regex syntax, not shell
// quoting — as literal text.
func ParseInterpolatedText(raw string) (Word, error) {
	rs := []rune(raw)
	pos := 0
	var parts []WordPart
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, Lit{Value: lit.String()})
			lit.Reset()
		}
	}
	for pos < len(rs) {
		if rs[pos] == '$' {
			flush()
			part, np, err := parseDollar(rs, pos, true)
			if err != nil {
				return Word{}, err
			}
			parts = append(parts, part)
			pos = np
			continue
		}
		lit.WriteRune(rs[pos])
		pos++
	}
	flush()
	return Word{Parts: parts}, nil
}

func isTildeNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

func parseDoubleQuoted(rs []rune, pos int) ([]WordPart, int, error) {
	var parts []WordPart
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			parts = append(parts, Lit{Value: sb.String()})
			sb.Reset()
		}
	}
	for pos < len(rs) {
		r := rs[pos]
		switch r {
		case '"':
			flush()
			return parts, pos + 1, nil
		case '\\':
			pos++
			if pos < len(rs) {
				switch rs[pos] {
				case '"', '\\', '$':
					sb.WriteRune(rs[pos])
				case 'n':
					sb.WriteRune('\n')
				case 't':
					sb.WriteRune('\t')
				default:
					sb.WriteRune('\\')
					sb.WriteRune(rs[pos])
				}
				pos++
			}
		case '$':
			flush()
			part, np, err := parseDollar(rs, pos, true)
			if err != nil {
				return nil, 0, err
			}
			parts = append(parts, part)
			pos = np
		default:
			sb.WriteRune(r)
			pos++
		}
	}
	return nil, 0, xerrors.New("lang: unterminated double-quoted string")
}

// parseDollar parses a $name, $name[idx], or $( … ) form starting at
// rs[pos] == '$'.
func parseDollar(rs []rune, pos int, quoted bool) (WordPart, int, error) {
	pos++ // consume '$'
	if pos < len(rs) && rs[pos] == '(' {
		depth := 1
		pos++
		start := pos
		for pos < len(rs) && depth > 0 {
			switch rs[pos] {
			case '(':
				depth++
			case ')':
				depth--
			}
			pos++
		}
		if depth != 0 {
			return nil, 0, xerrors.New("lang: unterminated command substitution")
		}
		body := string(rs[start : pos-1])
		prog, err := ParseProgram(body)
		if err != nil {
			return nil, 0, xerrors.Errorf("lang: command substitution: %w", err)
		}
		pl, ok := asSinglePipeline(prog)
		if !ok {
			return nil, 0, xerrors.New("lang: command substitution body must be a single pipeline")
		}
		return CmdSubst{Body: pl, Quoted: quoted}, pos, nil
	}

	start := pos
	for pos < len(rs) && isNameChar(rs[pos]) {
		pos++
	}
	if pos == start {
		return Lit{Value: "$"}, pos, nil
	}
	name := string(rs[start:pos])
	index := 0
	if pos < len(rs) && rs[pos] == '[' {
		pos++
		istart := pos
		for pos < len(rs) && rs[pos] != ']' {
			pos++
		}
		if pos >= len(rs) {
			return nil, 0, xerrors.New("lang: unterminated index expression")
		}
		n, err := strconv.Atoi(string(rs[istart:pos]))
		if err != nil {
			return nil, 0, xerrors.Errorf("lang: bad index %q: %w", string(rs[istart:pos]), err)
		}
		index = n
		pos++ // consume ']'
	}
	return VarRef{Name: name, Index: index, Quoted: quoted}, pos, nil
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '?' || r == '*'
}

func asSinglePipeline(stmts []Stmt) (*Pipeline, bool) {
	if len(stmts) != 1 {
		return nil, false
	}
	pl, ok := stmts[0].(*Pipeline)
	return pl, ok
}
