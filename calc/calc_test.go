package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalPrecedence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"10 / 4", "2"},
		{"10 % 3", "1"},
		{"-3 + 5", "2"},
		{"2 * (3 + 4) - 1", "13"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := Eval(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestEvalFloat(t *testing.T) {
	got, err := Eval("1.5 + 2.5")
	require.NoError(t, err)
	assert.Equal(t, "4", got)

	got, err = Eval("10 / 4.0")
	require.NoError(t, err)
	assert.Equal(t, "2.5", got)
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval("1 / 0")
	require.Error(t, err)
	var ae *ArithError
	require.ErrorAs(t, err, &ae)
}

func TestEvalSyntaxError(t *testing.T) {
	_, err := Eval("1 + ")
	require.Error(t, err)
	var ae *ArithError
	require.ErrorAs(t, err, &ae)
}
