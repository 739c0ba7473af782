package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndOfLineRoundTrip(t *testing.T) {
	cases := []struct {
		eol  EndOfLine
		text string
	}{
		{NoLineEnding, ""},
		{NewLine, "\n"},
		{CarriageReturn, "\r"},
		{CarriageReturnNewLine, "\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.eol.Name(), func(t *testing.T) {
			assert.Equal(t, tc.text, tc.eol.String())

			parsed, err := ParseEndOfLine(tc.eol.String())
			require.NoError(t, err)
			assert.Equal(t, tc.eol, parsed)

			b, err := json.Marshal(tc.eol)
			require.NoError(t, err)
			var s string
			require.NoError(t, json.Unmarshal(b, &s))
			assert.Equal(t, tc.text, s)

			var back EndOfLine
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tc.eol, back)
		})
	}
}

func TestEndOfLineTableMatchesValues(t *testing.T) {
	all := []string{
		NoLineEnding.String(),
		NewLine.String(),
		CarriageReturn.String(),
		CarriageReturnNewLine.String(),
	}
	assert.Equal(t, EOL, all)
}

func TestParseEndOfLineRejectsUnknown(t *testing.T) {
	for _, in := range []string{"\\n", "\n\r", " ", "NewLine", "\r\n\r\n"} {
		_, err := ParseEndOfLine(in)
		assert.Error(t, err, "input %q", in)
	}

	var eol EndOfLine
	assert.Error(t, json.Unmarshal([]byte(`"\t"`), &eol))
	assert.Error(t, json.Unmarshal([]byte(`1`), &eol))
}

func TestContainsEOL(t *testing.T) {
	// The empty NoLineEnding marker matches everything.
	assert.True(t, ContainsEOL(""))
	assert.True(t, ContainsEOL("L1:1,L2:2"))
	assert.True(t, ContainsEOL("L1:1\n"))

	assert.False(t, HasLineBreak("L1:1,L2:2"))
	assert.True(t, HasLineBreak("L1:1\n"))
	assert.True(t, HasLineBreak("L1:1\r"))
}

func TestEndOfLineByName(t *testing.T) {
	for _, e := range []EndOfLine{NoLineEnding, NewLine, CarriageReturn, CarriageReturnNewLine} {
		got, err := EndOfLineByName(e.Name())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
	_, err := EndOfLineByName("lf")
	assert.Error(t, err)
}
