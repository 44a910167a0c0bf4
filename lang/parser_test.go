package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) Stmt {
	stmts, err := ParseProgram(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParsePipelineExternal(t *testing.T) {
	stmt := parseOne(t, "echo hi | wc -l\n")
	pl, ok := stmt.(*Pipeline)
	require.True(t, ok)
	require.Len(t, pl.Stages, 2)
	assert.Equal(t, "|", pl.Stages[0].Op)
	assert.Equal(t, "", pl.Stages[1].Op)
	require.Len(t, pl.Stages[0].Cmd.Args, 2)
	assert.Nil(t, pl.Stages[0].Cmd.SRE)
}

func TestParsePipelineWithLeadingAbsolutePath(t *testing.T) {
	stmt := parseOne(t, "/usr/bin/wc -l\n")
	pl, ok := stmt.(*Pipeline)
	require.True(t, ok)
	require.Len(t, pl.Stages, 1)
	require.NotNil(t, pl.Stages[0].Cmd)
	assert.Nil(t, pl.Stages[0].Cmd.SRE)
	require.Len(t, pl.Stages[0].Cmd.Args, 2)
}

func TestParsePizzaStageIsSRE(t *testing.T) {
	stmt := parseOne(t, "cat file |> ,x/foo/ c/bar/\n")
	pl, ok := stmt.(*Pipeline)
	require.True(t, ok)
	require.Len(t, pl.Stages, 2)
	assert.Equal(t, "|>", pl.Stages[0].Op)
	assert.Nil(t, pl.Stages[0].Cmd.SRE)
	require.NotNil(t, pl.Stages[1].Cmd.SRE)
}

func TestParseLeadingPizzaImpliesImplicitStdinStage(t *testing.T) {
	stmt := parseOne(t, "|> ,x/Tudor/ c/Ioan/ |> ,p\n")
	pl, ok := stmt.(*Pipeline)
	require.True(t, ok)
	require.Len(t, pl.Stages, 2)
	require.NotNil(t, pl.Stages[0].Cmd.SRE)
	require.NotNil(t, pl.Stages[1].Cmd.SRE)
	assert.Equal(t, "|>", pl.Stages[0].Op)
}

func TestParseNegatedPipeline(t *testing.T) {
	stmt := parseOne(t, "! grep foo file\n")
	pl, ok := stmt.(*Pipeline)
	require.True(t, ok)
	assert.True(t, pl.Negate)
}

func TestParseAndOr(t *testing.T) {
	stmt := parseOne(t, "true && false || true\n")
	ao, ok := stmt.(*AndOr)
	require.True(t, ok)
	assert.Equal(t, "||", ao.Op)
	inner, ok := ao.Left.(*AndOr)
	require.True(t, ok)
	assert.Equal(t, "&&", inner.Op)
}

func TestParseIfElseIfElse(t *testing.T) {
	stmt := parseOne(t, `if (grep foo f) {
  echo yes
} else if (grep bar f) {
  echo maybe
} else {
  echo no
}
`)
	ifStmt, ok := stmt.(*If)
	require.True(t, ok)
	require.Len(t, ifStmt.Then, 1)
	require.Len(t, ifStmt.Elifs, 1)
	require.Len(t, ifStmt.Else, 1)
}

func TestParseWhile(t *testing.T) {
	stmt := parseOne(t, "while (true) {\n  echo loop\n}\n")
	w, ok := stmt.(*While)
	require.True(t, ok)
	require.Len(t, w.Body, 1)
}

func TestParseSwitch(t *testing.T) {
	stmt := parseOne(t, `switch $x
/foo/ {
  echo got-foo
}
// {
  echo default
}
end
`)
	sw, ok := stmt.(*Switch)
	require.True(t, ok)
	require.Len(t, sw.Arms, 2)
	assert.Equal(t, "foo", sw.Arms[0].Pattern)
	assert.False(t, sw.Arms[0].Default)
	assert.True(t, sw.Arms[1].Default)
}

func TestParseMatch(t *testing.T) {
	stmt := parseOne(t, `match
/err/ {
  echo has-error
}
/ok/ {
  echo is-ok
}
end
`)
	m, ok := stmt.(*Match)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)
	assert.Equal(t, "err", m.Arms[0].Pattern)
	assert.Equal(t, "ok", m.Arms[1].Pattern)
}

func TestParseSwitchFallThrough(t *testing.T) {
	stmt := parseOne(t, `switch $x
/foo/ {
  echo got-foo
}
fallthrough
/bar/ {
  echo also-bar
}
end
`)
	sw, ok := stmt.(*Switch)
	require.True(t, ok)
	require.Len(t, sw.Arms, 2)
	assert.True(t, sw.Arms[0].FallThrough)
	assert.False(t, sw.Arms[1].FallThrough)
}

func TestParseLetSimple(t *testing.T) {
	stmt := parseOne(t, "let x = hello\n")
	ls, ok := stmt.(*LetStmt)
	require.True(t, ok)
	assert.Equal(t, "x", ls.Assign.Name)
	assert.Equal(t, "=", ls.Assign.Op)
	require.Len(t, ls.Assign.Value, 1)
}

func TestParseLetFlagsCombinedCompoundOp(t *testing.T) {
	stmt := parseOne(t, "let -lx x += 1\n")
	ls, ok := stmt.(*LetStmt)
	require.True(t, ok)
	assert.True(t, ls.Assign.Local)
	assert.True(t, ls.Assign.Export)
	assert.Equal(t, "+=", ls.Assign.Op)
}

func TestParseLetArrayLiteral(t *testing.T) {
	stmt := parseOne(t, "let xs = [ a b c ]\n")
	ls, ok := stmt.(*LetStmt)
	require.True(t, ok)
	assert.True(t, ls.Assign.IsArray)
	require.Len(t, ls.Assign.Value, 3)
}

func TestParseLetErase(t *testing.T) {
	stmt := parseOne(t, "let -e x\n")
	ls, ok := stmt.(*LetStmt)
	require.True(t, ok)
	assert.True(t, ls.Assign.Erase)
	assert.Equal(t, "x", ls.Assign.Name)
}

func TestParseLetBareNoOperator(t *testing.T) {
	stmt := parseOne(t, "let x\n")
	ls, ok := stmt.(*LetStmt)
	require.True(t, ok)
	assert.Equal(t, "x", ls.Assign.Name)
	assert.Equal(t, "", ls.Assign.Op)
}

func TestParseBlock(t *testing.T) {
	stmt := parseOne(t, "{\n  echo a\n  echo b\n}\n")
	b, ok := stmt.(*Block)
	require.True(t, ok)
	require.Len(t, b.Stmts, 2)
}

func TestParseCommandSubstitution(t *testing.T) {
	stmts, err := ParseProgram("echo $(echo hi)\n")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	pl := stmts[0].(*Pipeline)
	args := pl.Stages[0].Cmd.Args
	require.Len(t, args, 2)
	require.Len(t, args[1].Parts, 1)
	subst, ok := args[1].Parts[0].(CmdSubst)
	require.True(t, ok)
	require.NotNil(t, subst.Body)
}

func TestParseVarRefWithIndex(t *testing.T) {
	stmts, err := ParseProgram("echo $xs[2]\n")
	require.NoError(t, err)
	pl := stmts[0].(*Pipeline)
	ref := pl.Stages[0].Cmd.Args[1].Parts[0].(VarRef)
	assert.Equal(t, "xs", ref.Name)
	assert.Equal(t, 2, ref.Index)
}
