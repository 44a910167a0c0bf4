package pizza

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tudurom/rwsh/sre"
)

func resolver(t *testing.T) sre.RegexResolver {
	return func(pattern string) (*sre.Matcher, error) {
		m, err := sre.Compile(pattern)
		require.NoError(t, err)
		return m, nil
	}
}

func sreStage(t *testing.T, prog string) SRE {
	cmd, rest, err := sre.ParseCommand(prog)
	require.NoError(t, err)
	require.Empty(t, rest)
	return SRE{Cmd: cmd, Resolve: resolver(t)}
}

func TestRunSingleSREStage(t *testing.T) {
	p := &Pipeline{Stages: []Stage{sreStage(t, ",x/Tudor/ c/Ioan/")}}
	var stdout, stderr bytes.Buffer
	res, err := Run(context.Background(), p, strings.NewReader("Tudor and Andrei"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, "Ioan and Andrei", stdout.String())
}

func TestRunExternalPipeline(t *testing.T) {
	p := &Pipeline{Stages: []Stage{
		External{Argv: []string{"echo", "-n", "hello world"}},
		External{Argv: []string{"tr", "a-z", "A-Z"}},
	}}
	var stdout, stderr bytes.Buffer
	res, err := Run(context.Background(), p, nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, "HELLO WORLD", stdout.String())
}

func TestRunMixedPipeline(t *testing.T) {
	p := &Pipeline{Stages: []Stage{
		External{Argv: []string{"echo", "one two three"}},
		sreStage(t, ",x/[a-z]+/ p"),
	}}
	var stdout, stderr bytes.Buffer
	res, err := Run(context.Background(), p, nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, "one\ntwo\nthree\n", stdout.String())
}

func TestRunParallelConflictExitsNonzero(t *testing.T) {
	p := &Pipeline{Stages: []Stage{sreStage(t, ",x/a/ { c/X/ ; c/Y/ }")}}
	var stdout, stderr bytes.Buffer
	res, err := Run(context.Background(), p, strings.NewReader("abc"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitStatus)
	assert.NotEmpty(t, stderr.String())
}
