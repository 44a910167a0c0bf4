package sre

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tudurom/rwsh/buffer"
)

func runProgram(t *testing.T, input, prog string) (string, string, Span) {
	buf := buffer.NewFromString(input)
	cmd, rest, err := ParseCommand(prog)
	require.NoError(t, err)
	require.Empty(t, rest)

	var out bytes.Buffer
	ctx := NewContext(buf, Span{}, &out, testResolve(t))
	dot, err := Run(ctx, cmd)
	require.NoError(t, err)
	return buf.String(), out.String(), dot
}

func TestRunChange(t *testing.T) {
	text, _, _ := runProgram(t, "Tudor and Andrei", ",x/Tudor/ c/Ioan/")
	assert.Equal(t, "Ioan and Andrei", text)
}

func TestRunPrint(t *testing.T) {
	_, out, _ := runProgram(t, "one two three", ",x/[a-z]+/ p")
	assert.Equal(t, "one\ntwo\nthree\n", out)
}

func TestRunGuardSkipsWhenAbsent(t *testing.T) {
	text, _, _ := runProgram(t, "apple", ",g/zzz/ c/X/")
	assert.Equal(t, "apple", text)
}

func TestRunVeto(t *testing.T) {
	text, _, _ := runProgram(t, "apple", ",v/zzz/ c/X/")
	assert.Equal(t, "X", text)
}

func TestRunLoopYPartitionsAroundMatches(t *testing.T) {
	// y deletes everything between matches of ",", leaving only commas.
	text, _, _ := runProgram(t, "a,b,c", ",y/,/ d")
	assert.Equal(t, ",,", text)
}

func TestRunParallelNoConflict(t *testing.T) {
	// Swap: whichever name each match is, the other branch's guard fails
	// so only one edit is ever produced per match.
	text, _, _ := runProgram(t, "Tudor and Andrei",
		`,x/Tudor|Andrei/ { g/Tudor/ c/Andrei/ ; g/Andrei/ c/Tudor/ }`)
	assert.Equal(t, "Andrei and Tudor", text)
}

func TestRunParallelConflict(t *testing.T) {
	buf := buffer.NewFromString("abc")
	cmd, _, err := ParseCommand(",x/a/ { c/X/ ; c/Y/ }")
	require.NoError(t, err)
	var out bytes.Buffer
	ctx := NewContext(buf, Span{}, &out, testResolve(t))
	_, err = Run(ctx, cmd)
	require.Error(t, err)
	assert.IsType(t, &ConflictError{}, err)
}

func TestRunAppendInsertDelete(t *testing.T) {
	text, _, _ := runProgram(t, "hello", "/ell/ a/X/")
	assert.Equal(t, "hellXo", text)

	text, _, _ = runProgram(t, "hello", "/ell/ i/X/")
	assert.Equal(t, "hXello", text)

	text, _, _ = runProgram(t, "hello", ",x/l/ d")
	assert.Equal(t, "heo", text)
}

func TestRunWhere(t *testing.T) {
	_, out, _ := runProgram(t, "hello world", "/world/ =")
	assert.Equal(t, "#6,#11\n", out)
}
