package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockDeltaSingleLine(t *testing.T) {
	assert.Equal(t, 0, blockDelta("echo abc\n"))
	assert.Equal(t, 0, blockDelta("if (true) { echo yes }\n"))
}

func TestBlockDeltaOpenClose(t *testing.T) {
	assert.Equal(t, 1, blockDelta("if (true) {\n"))
	assert.Equal(t, -1, blockDelta("}\n"))
	assert.Equal(t, 1, blockDelta("switch $x\n"))
	assert.Equal(t, -1, blockDelta("end\n"))
}

func TestReadStatementStopsAtBalancedBlock(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("if (true) {\n  echo yes\n}\necho next\n"))
	stmt, eof, err := readStatement(in, func(bool) {})
	require.NoError(t, err)
	assert.False(t, eof)
	assert.Equal(t, "if (true) {\n  echo yes\n}\n", stmt)

	stmt, eof, err = readStatement(in, func(bool) {})
	require.NoError(t, err)
	assert.False(t, eof)
	assert.Equal(t, "echo next\n", stmt)

	stmt, eof, err = readStatement(in, func(bool) {})
	require.NoError(t, err)
	assert.True(t, eof)
	assert.Equal(t, "", stmt)
}

func TestReadStatementSingleLine(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("echo hi\n"))
	stmt, eof, err := readStatement(in, func(bool) {})
	require.NoError(t, err)
	assert.False(t, eof)
	assert.Equal(t, "echo hi\n", stmt)
}
