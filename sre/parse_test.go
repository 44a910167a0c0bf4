package sre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddrSimple(t *testing.T) {
	a, rest, err := ParseAddr("0")
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, AddrStart, a.Kind)

	a, rest, err = ParseAddr("$")
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, AddrEnd, a.Kind)

	a, rest, err = ParseAddr("#12")
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, AddrChar, a.Kind)
	assert.Equal(t, int64(12), a.N)

	a, rest, err = ParseAddr("5")
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, AddrLine, a.Kind)
	assert.Equal(t, int64(5), a.N)
}

func TestParseAddrRegexp(t *testing.T) {
	a, _, err := ParseAddr("/foo\\/bar/")
	require.NoError(t, err)
	assert.Equal(t, AddrRegexp, a.Kind)
	assert.Equal(t, "foo/bar", a.Re)
	assert.False(t, a.Rev)

	a, _, err = ParseAddr("?back?")
	require.NoError(t, err)
	assert.Equal(t, AddrRegexp, a.Kind)
	assert.True(t, a.Rev)
}

func TestParseAddrCompound(t *testing.T) {
	a, rest, err := ParseAddr("1+2,/foo/")
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Equal(t, AddrRange, a.Kind)
	assert.Equal(t, AddrPlus, a.Left.Kind)
	assert.Equal(t, AddrRegexp, a.Right.Kind)
}

func TestParseCommandSimple(t *testing.T) {
	cmd, rest, err := ParseCommand(",x/Tudor/ c/Ioan/")
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, OpLoopX, cmd.Op)
	assert.Equal(t, "Tudor", cmd.Arg)
	require.NotNil(t, cmd.Child)
	assert.Equal(t, OpChange, cmd.Child.Op)
	assert.Equal(t, "Ioan", cmd.Child.Arg)
}

func TestParseCommandParallel(t *testing.T) {
	cmd, rest, err := ParseCommand(`{ g/Tudor/ c/Andrei/ ; g/Andrei/ c/Tudor/ }`)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, OpParallel, cmd.Op)
	require.Len(t, cmd.Children, 2)
	assert.Equal(t, OpGuard, cmd.Children[0].Op)
	assert.Equal(t, OpGuard, cmd.Children[1].Op)
}

func TestParseCommandEscapes(t *testing.T) {
	cmd, _, err := ParseCommand(`,c/a\/b\nc/`)
	require.NoError(t, err)
	assert.Equal(t, "a/b\nc", cmd.Arg)
}
