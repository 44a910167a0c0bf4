package lang

import (
	"strings"

	"golang.org/x/xerrors"
)

// Parser turns a Lexer's token stream into statements. Stage kind
// (external vs SRE) is decided purely by the connector that introduces
// it: a stage immediately following `|>` — including a pipeline's own
// leading `|>` with no left-hand command, for the implicit-stdin-buffer
// form shown in spec.md's pizza examples — is parsed as raw SRE program
// text via Lexer.ScanSREStage; every other stage (the first stage of a
// pipeline, or any stage following plain `|`) is parsed as an ordinary
// word list. This keeps the grammar unambiguous: command names that
// happen to start with characters SRE also uses (`/usr/bin/foo`, a bare
// digit, `.`) are never misparsed, because stage kind never depends on
// a stage's own leading character, only on its connector.
type Parser struct {
	lex *Lexer
	buf *Tok
}

// NewParser returns a Parser over src.
func NewParser(src string) *Parser { return &Parser{lex: NewLexer(src)} }

// ParseProgram parses a complete script into its top-level statements.
func ParseProgram(src string) ([]Stmt, error) {
	p := NewParser(src)
	stmts, err := p.parseStmts(nil)
	if err != nil {
		return nil, err
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokEOF {
		return nil, xerrors.Errorf("lang: unexpected token %v at top level", tok)
	}
	return stmts, nil
}

func (p *Parser) next() (Tok, error) {
	if p.buf != nil {
		t := *p.buf
		p.buf = nil
		return t, nil
	}
	return p.lex.Next()
}

func (p *Parser) unread(t Tok) { p.buf = &t }

// stopSet reports whether tok ends the current statement list; nil
// means "only EOF ends it" (used for the top level).
type stopSet func(Tok) bool

func stopAt(kind TokKind, raws ...string) stopSet {
	return func(t Tok) bool {
		if t.Kind != kind {
			return false
		}
		if len(raws) == 0 {
			return true
		}
		for _, r := range raws {
			if t.Raw == r {
				return true
			}
		}
		return false
	}
}

// parseStmts parses statements, skipping blank lines, until stop
// matches the next token (left unread for the caller) or EOF.
func (p *Parser) parseStmts(stop stopSet) ([]Stmt, error) {
	var stmts []Stmt
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokNewline {
			continue
		}
		if tok.Kind == TokEOF {
			p.unread(tok)
			return stmts, nil
		}
		if stop != nil && stop(tok) {
			p.unread(tok)
			return stmts, nil
		}
		p.unread(tok)
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// parseBody parses a `{ … }` block's contents, consuming both braces.
func (p *Parser) parseBody() ([]Stmt, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokLBrace {
		return nil, xerrors.Errorf("lang: expected '{', got %v", tok)
	}
	stmts, err := p.parseStmts(stopAt(TokRBrace))
	if err != nil {
		return nil, err
	}
	tok, err = p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokRBrace {
		return nil, xerrors.Errorf("lang: expected '}', got %v", tok)
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (Stmt, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokLBrace:
		p.unread(tok)
		stmts, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		return &Block{Stmts: stmts}, nil
	case TokKeyword:
		switch tok.Raw {
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "switch":
			return p.parseSwitch()
		case "match":
			return p.parseMatch()
		case "let":
			return p.parseLet()
		default:
			return nil, xerrors.Errorf("lang: unexpected keyword %q", tok.Raw)
		}
	default:
		p.unread(tok)
		return p.parseAndOr()
	}
}

// parseAndOr parses a chain of pipelines connected by && and ||,
// left-associative.
func (p *Parser) parseAndOr() (Stmt, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	var stmt Stmt = left
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokAndAnd && tok.Kind != TokOrOr {
			p.unread(tok)
			return stmt, nil
		}
		op := "&&"
		if tok.Kind == TokOrOr {
			op = "||"
		}
		right, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		stmt = &AndOr{Left: stmt, Op: op, Right: right}
	}
}

// parsePipeline parses one `!`-optional chain of stages connected by
// `|`/`|>`.
func (p *Parser) parsePipeline() (*Pipeline, error) {
	pl := &Pipeline{}

	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokBang {
		pl.Negate = true
	} else {
		p.unread(tok)
	}

	// A pipeline may open with a bare `|>`: the implicit first stage is
	// the shell's current stdin buffer, and the SRE stage that follows
	// is the pipeline's real first stage.
	tok, err = p.next()
	if err != nil {
		return nil, err
	}
	firstIsSRE := tok.Kind == TokPizza
	if !firstIsSRE {
		p.unread(tok)
	}

	cmd, err := p.parseCommand(firstIsSRE)
	if err != nil {
		return nil, err
	}
	pl.Stages = append(pl.Stages, PipelineStage{Cmd: cmd})

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokPipe && tok.Kind != TokPizza {
			p.unread(tok)
			break
		}
		op := "|"
		nextIsSRE := false
		if tok.Kind == TokPizza {
			op = "|>"
			nextIsSRE = true
		}
		pl.Stages[len(pl.Stages)-1].Op = op
		cmd, err := p.parseCommand(nextIsSRE)
		if err != nil {
			return nil, err
		}
		pl.Stages = append(pl.Stages, PipelineStage{Cmd: cmd})
	}
	return pl, nil
}

// parseCommand parses one stage: raw SRE program text if sre is true,
// otherwise a word list.
func (p *Parser) parseCommand(sre bool) (*Command, error) {
	if sre {
		raw, err := p.lex.ScanSREStage()
		if err != nil {
			return nil, err
		}
		w, err := ParseInterpolatedText(raw)
		if err != nil {
			return nil, err
		}
		return &Command{SRE: &w}, nil
	}

	var words []Word
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokWord {
			p.unread(tok)
			break
		}
		w, err := ParseWordText(tok.Raw)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil, xerrors.New("lang: expected a command")
	}
	return &Command{Args: words}, nil
}

// parseIf parses `if ( cmd ) { … } [else if ( cmd ) { … }]* [else { … }]`.
func (p *Parser) parseIf() (*If, error) {
	cond, err := p.parseParenCond()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	stmt := &If{Cond: cond, Then: then}

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokNewline {
			continue
		}
		if tok.Kind != TokKeyword || tok.Raw != "else" {
			p.unread(tok)
			return stmt, nil
		}
		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokKeyword && tok.Raw == "if" {
			elifCond, err := p.parseParenCond()
			if err != nil {
				return nil, err
			}
			elifThen, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			stmt.Elifs = append(stmt.Elifs, struct {
				Cond *Pipeline
				Then []Stmt
			}{Cond: elifCond, Then: elifThen})
			continue
		}
		p.unread(tok)
		elseBody, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
		return stmt, nil
	}
}

func (p *Parser) parseWhile() (*While, error) {
	cond, err := p.parseParenCond()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &While{Cond: cond, Body: body}, nil
}

// parseParenCond parses `( pipeline )`.
func (p *Parser) parseParenCond() (*Pipeline, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokLParen {
		return nil, xerrors.Errorf("lang: expected '(', got %v", tok)
	}
	cond, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	tok, err = p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokRParen {
		return nil, xerrors.Errorf("lang: expected ')', got %v", tok)
	}
	return cond, nil
}

// parseSwitch parses `switch WORD /re1/ { … } /re2/ { … } // { … } end`,
// per spec.md §4.5; the default arm's pattern is written as a bare `//`.
func (p *Parser) parseSwitch() (*Switch, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokWord {
		return nil, xerrors.Errorf("lang: expected switch value, got %v", tok)
	}
	value, err := ParseWordText(tok.Raw)
	if err != nil {
		return nil, err
	}

	sw := &Switch{Value: value}
	for {
		arm, done, err := p.parseSwitchArm()
		if err != nil {
			return nil, err
		}
		if done {
			return sw, nil
		}
		sw.Arms = append(sw.Arms, arm)
	}
}

func (p *Parser) parseSwitchArm() (SwitchArm, bool, error) {
	if p.buf != nil {
		return SwitchArm{}, false, xerrors.New("lang: internal: unexpected pending token before switch arm")
	}
	p.lex.SkipBlankLines()
	if p.lex.AtKeyword("end") {
		tok, err := p.next()
		if err != nil {
			return SwitchArm{}, false, err
		}
		if tok.Kind != TokKeyword || tok.Raw != "end" {
			return SwitchArm{}, false, xerrors.Errorf("lang: internal: expected 'end', got %v", tok)
		}
		return SwitchArm{}, true, nil
	}
	pattern, isDefault, err := p.scanArmPattern()
	if err != nil {
		return SwitchArm{}, false, err
	}
	body, err := p.parseBody()
	if err != nil {
		return SwitchArm{}, false, err
	}

	// spec.md §9 Open Question (c), resolved: the bare `//` arm is
	// already a catch-all by pattern; an explicit trailing
	// `fallthrough` keyword on a non-default arm is what continues
	// execution into the next arm instead of stopping.
	fallThrough := false
	p.lex.SkipBlankLines()
	if p.lex.AtKeyword("fallthrough") {
		tok, err := p.next()
		if err != nil {
			return SwitchArm{}, false, err
		}
		if tok.Kind != TokKeyword || tok.Raw != "fallthrough" {
			return SwitchArm{}, false, xerrors.Errorf("lang: internal: expected 'fallthrough', got %v", tok)
		}
		fallThrough = true
	}
	return SwitchArm{Pattern: pattern, Default: isDefault, Body: body, FallThrough: fallThrough}, false, nil
}

// scanArmPattern reads one `/re/` (or bare `//` default marker) switch
// or match arm pattern directly off the lexer's raw input, since a
// regex delimited by `/` is not a normal shell word.
func (p *Parser) scanArmPattern() (string, bool, error) {
	if p.buf != nil {
		return "", false, xerrors.New("lang: internal: unexpected pending token before arm pattern")
	}
	raw, err := p.lex.ScanArmPattern()
	if err != nil {
		return "", false, err
	}
	if raw == "//" {
		return "", true, nil
	}
	if len(raw) < 2 || raw[0] != '/' {
		return "", false, xerrors.Errorf("lang: expected /pattern/, got %q", raw)
	}
	pattern, err := unescapeDelimited(raw[1 : len(raw)-1])
	if err != nil {
		return "", false, err
	}
	return pattern, false, nil
}

func unescapeDelimited(s string) (string, error) {
	var sb []rune
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] == '\\' && i+1 < len(rs) {
			i++
			sb = append(sb, rs[i])
			continue
		}
		sb = append(sb, rs[i])
	}
	return string(sb), nil
}

// parseMatch parses `match /re1/ { … } /re2/ { … } end`.
func (p *Parser) parseMatch() (*Match, error) {
	m := &Match{}
	for {
		if p.buf != nil {
			return nil, xerrors.New("lang: internal: unexpected pending token before match arm")
		}
		p.lex.SkipBlankLines()
		if p.lex.AtKeyword("end") {
			tok, err := p.next()
			if err != nil {
				return nil, err
			}
			if tok.Kind != TokKeyword || tok.Raw != "end" {
				return nil, xerrors.Errorf("lang: internal: expected 'end', got %v", tok)
			}
			return m, nil
		}

		pattern, isDefault, err := p.scanArmPattern()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		if isDefault {
			pattern = ".*"
		}
		m.Arms = append(m.Arms, MatchArm{Pattern: pattern, Body: body})
	}
}

// parseLet parses a `let` statement per spec.md §4.5/§6:
//
//	let [-l] [-x] [-e] [-xe ...combined] NAME [OP value...]
//	OP is one of = += -= *= /= %= ++= ::=
//	value... may be a single `[ w1 w2 … ]` bracketed array literal
//
// With no OP at all (bare `let NAME`), SPEC_FULL.md §4 has it print
// NAME's current value rather than assign — Runner handles that case
// by checking Assign.Op == "" at evaluation time; the parser simply
// leaves Op empty when no operator token follows the name.
func (p *Parser) parseLet() (*LetStmt, error) {
	a := &Assign{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokWord {
			return nil, xerrors.Errorf("lang: expected name in let, got %v", tok)
		}
		if flags, ok := letFlags(tok.Raw); ok {
			if strings.ContainsRune(flags, 'l') {
				a.Local = true
			}
			if strings.ContainsRune(flags, 'x') {
				a.Export = true
			}
			if strings.ContainsRune(flags, 'e') {
				a.Erase = true
			}
			continue
		}
		a.Name = tok.Raw
		break
	}

	if a.Erase {
		return &LetStmt{Assign: a}, nil
	}

	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Raw {
	case "=", "+=", "-=", "*=", "/=", "%=", "++=", "::=":
		a.Op = tok.Raw
	default:
		p.unread(tok)
		return &LetStmt{Assign: a}, nil
	}

	tok, err = p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokWord && tok.Raw == "[" {
		a.IsArray = true
		for {
			tok, err := p.next()
			if err != nil {
				return nil, err
			}
			if tok.Kind == TokNewline {
				continue
			}
			if tok.Kind == TokWord && tok.Raw == "]" {
				break
			}
			if tok.Kind != TokWord {
				return nil, xerrors.Errorf("lang: expected word in array literal, got %v", tok)
			}
			w, err := ParseWordText(tok.Raw)
			if err != nil {
				return nil, err
			}
			a.Value = append(a.Value, w)
		}
		return &LetStmt{Assign: a}, nil
	}
	p.unread(tok)

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind != TokWord {
			p.unread(tok)
			break
		}
		w, err := ParseWordText(tok.Raw)
		if err != nil {
			return nil, err
		}
		a.Value = append(a.Value, w)
	}
	return &LetStmt{Assign: a}, nil
}

// letFlags reports whether raw is a `-` flag cluster made only of the
// letters l, x, e (e.g. "-l", "-x", "-xe", "-el"), returning those
// letters; spec.md §6 allows them combined in any order.
func letFlags(raw string) (string, bool) {
	if len(raw) < 2 || raw[0] != '-' {
		return "", false
	}
	for _, r := range raw[1:] {
		if r != 'l' && r != 'x' && r != 'e' {
			return "", false
		}
	}
	return raw[1:], true
}
