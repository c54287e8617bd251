package markdown

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensions(t *testing.T) {
	e := New()

	assert.ElementsMatch(t, []string{"md", "markdown"}, e.Extensions())
}

func TestExtract_StripsHeadings(t *testing.T) {
	e := New()

	text, err := e.Extract(context.Background(), strings.NewReader("# Title\n\nSome text\n\n## Section\n\nMore text"), "doc.md")

	require.NoError(t, err)
	assert.NotContains(t, text, "#")
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Section")
	assert.Contains(t, text, "Some text")
}

func TestExtract_UnwrapsLinksAndCode(t *testing.T) {
	e := New()
	input := "See [the docs](https://example.com) and run `make build`.\n\n```go\nfunc main() {}\n```\n"

	text, err := e.Extract(context.Background(), strings.NewReader(input), "doc.md")

	require.NoError(t, err)
	assert.Contains(t, text, "the docs")
	assert.NotContains(t, text, "https://example.com")
	assert.Contains(t, text, "make build")
	assert.NotContains(t, text, "`")
	// Fence markers go, code text stays
	assert.Contains(t, text, "func main() {}")
	assert.NotContains(t, text, "```")
}

func TestExtract_StripsListAndEmphasisMarkers(t *testing.T) {
	e := New()
	input := "- first item\n- **second** item\n1. numbered\n\n> quoted line\n\n---\n"

	text, err := e.Extract(context.Background(), strings.NewReader(input), "doc.md")

	require.NoError(t, err)
	assert.Contains(t, text, "first item")
	assert.Contains(t, text, "second item")
	assert.Contains(t, text, "numbered")
	assert.Contains(t, text, "quoted line")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "- ")
	assert.NotContains(t, text, "---")
}

func TestExtract_RemovesImages(t *testing.T) {
	e := New()

	text, err := e.Extract(context.Background(), strings.NewReader("before ![diagram](img.png) after"), "doc.md")

	require.NoError(t, err)
	assert.Contains(t, text, "before")
	assert.Contains(t, text, "after")
	assert.NotContains(t, text, "diagram")
	assert.NotContains(t, text, "img.png")
}

func TestExtract_Empty(t *testing.T) {
	e := New()

	text, err := e.Extract(context.Background(), strings.NewReader(""), "doc.md")

	require.NoError(t, err)
	assert.Empty(t, text)
}
