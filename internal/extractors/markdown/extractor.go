package markdown

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles Markdown documents.
type Extractor struct{}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the filename extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"md", "markdown"}
}

// Extract converts markdown to plain text with formatting simplified.
// Code stays in the output; only the fence and emphasis markers go.
func (e *Extractor) Extract(_ context.Context, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: reading content: %v", domain.ErrExtractionFailed, err)
	}

	return stripMarkdown(string(data)), nil
}

// Pre-compiled regular expressions for markdown stripping.
var (
	fenceLines   = regexp.MustCompile("(?m)^```.*$")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	images       = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquote   = regexp.MustCompile(`(?m)^>\s*`)
	horizontal   = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes common markdown formatting for plain text content.
// This is a simplified implementation that handles common cases.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	// Drop fence lines but keep the code inside them
	content = fenceLines.ReplaceAllString(content, "")

	// Unwrap inline code (`code` -> code)
	content = inlineCode.ReplaceAllString(content, "$1")

	// Remove images ![alt](url)
	content = images.ReplaceAllString(content, "")

	// Convert links [text](url) to just text
	content = links.ReplaceAllString(content, "$1")

	// Remove heading markers (# ## ### etc)
	content = headings.ReplaceAllString(content, "")

	// Remove bold/italic markers
	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")

	// Remove blockquote markers
	content = blockquote.ReplaceAllString(content, "")

	// Remove horizontal rules
	content = horizontal.ReplaceAllString(content, "")

	// Remove list markers (- * + and numbered)
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")

	// Collapse multiple newlines
	content = multiNewline.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
