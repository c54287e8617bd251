package plaintext

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensions(t *testing.T) {
	e := New()

	exts := e.Extensions()

	require.NotEmpty(t, exts)
	assert.Contains(t, exts, "txt")
	assert.Contains(t, exts, "csv")
	assert.Contains(t, exts, "json")
}

func TestExtract_Verbatim(t *testing.T) {
	e := New()

	text, err := e.Extract(context.Background(), strings.NewReader("hello\nworld"), "notes.txt")

	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)
}

func TestExtract_NormalisesLineEndings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "crlf",
			input:    "line one\r\nline two\r\n",
			expected: "line one\nline two\n",
		},
		{
			name:     "bare cr",
			input:    "line one\rline two",
			expected: "line one\nline two",
		},
		{
			name:     "already lf",
			input:    "line one\nline two",
			expected: "line one\nline two",
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := e.Extract(context.Background(), strings.NewReader(tt.input), "a.log")

			require.NoError(t, err)
			assert.Equal(t, tt.expected, text)
		})
	}
}

func TestExtract_Empty(t *testing.T) {
	e := New()

	text, err := e.Extract(context.Background(), strings.NewReader(""), "empty.txt")

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtract_SameBytesSameText(t *testing.T) {
	e := New()
	input := "deterministic content\twith tabs\n"

	first, err := e.Extract(context.Background(), strings.NewReader(input), "a.txt")
	require.NoError(t, err)

	second, err := e.Extract(context.Background(), strings.NewReader(input), "b.txt")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
