package sre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tudurom/rwsh/buffer"
)

func testResolve(t *testing.T) RegexResolver {
	return func(pattern string) (*Matcher, error) {
		m, err := Compile(pattern)
		require.NoError(t, err)
		return m, nil
	}
}

func TestEvalAddrSimple(t *testing.T) {
	buf := buffer.NewFromString("one\ntwo\nthree\n")
	resolve := testResolve(t)

	sp, err := EvalAddr(Start(), buf, Span{}, resolve)
	require.NoError(t, err)
	assert.Equal(t, Span{0, 0}, sp)

	sp, err = EvalAddr(End(), buf, Span{}, resolve)
	require.NoError(t, err)
	assert.Equal(t, Span{buf.Size(), buf.Size()}, sp)

	sp, err = EvalAddr(Line(2), buf, Span{}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "two\n", buf.Slice(sp.Start, sp.End))
}

func TestEvalAddrRegexpForwardWrap(t *testing.T) {
	buf := buffer.NewFromString("aXbXcXd")
	resolve := testResolve(t)

	dot := Span{5, 5} // after the second X, at 'c'
	sp, err := EvalAddr(RegexpFwd("X"), buf, dot, resolve)
	require.NoError(t, err)
	assert.Equal(t, "X", buf.Slice(sp.Start, sp.End))
	assert.True(t, sp.Start >= 5)

	dot = Span{6, 6} // past last X, should wrap to the first
	sp, err = EvalAddr(RegexpFwd("X"), buf, dot, resolve)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sp.Start)
}

func TestEvalAddrRegexpNoMatch(t *testing.T) {
	buf := buffer.NewFromString("no x here")
	resolve := testResolve(t)
	_, err := EvalAddr(RegexpFwd("ZZZ"), buf, Span{}, resolve)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestEvalAddrPlusMinus(t *testing.T) {
	buf := buffer.NewFromString("one\ntwo\nthree\nfour\n")
	resolve := testResolve(t)

	sp, err := EvalAddr(Plus(Line(1), Line(1)), buf, Span{}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "two\n", buf.Slice(sp.Start, sp.End))

	sp, err = EvalAddr(Minus(Line(3), Line(1)), buf, Span{}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "two\n", buf.Slice(sp.Start, sp.End))
}

func TestEvalAddrLineRelativeToBase(t *testing.T) {
	buf := buffer.NewFromString("one\ntwo\nthree\nfour\n")
	resolve := testResolve(t)

	// A line address evaluated with a non-zero base counts from that
	// base, not from the buffer start, the way the teacher's
	// lineForward/lineBackward always count from the "from" they're
	// given rather than from position 0.
	sp, err := EvalAddr(Line(1), buf, Span{8, 8}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "three\n", buf.Slice(sp.Start, sp.End))

	sp, err = EvalAddr(Minus(Line(1), Line(1)), buf, Span{8, 8}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "two\n", buf.Slice(sp.Start, sp.End))
}

func TestEvalAddrRange(t *testing.T) {
	buf := buffer.NewFromString("one\ntwo\nthree\n")
	resolve := testResolve(t)

	sp, err := EvalAddr(Range(Line(1), Line(2)), buf, Span{}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", buf.Slice(sp.Start, sp.End))
}

func TestEvalAddrThenThreadsDot(t *testing.T) {
	buf := buffer.NewFromString("aXbXcXd")
	resolve := testResolve(t)

	// ;-composition evaluates the right side with dot set to the left
	// side's result, unlike ,-composition which evaluates both from the
	// original dot.
	sp, err := EvalAddr(Then(RegexpFwd("X"), RegexpFwd("X")), buf, Span{}, resolve)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sp.Start)
	assert.Equal(t, int64(4), sp.End)
}
