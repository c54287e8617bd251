package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles plain text formats. It is the fallback for anything
// that is already readable as-is.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the filename extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"txt", "text", "log", "csv", "tsv", "json", "yaml", "yml", "toml"}
}

// Extract reads the document verbatim, normalising line endings so chunk
// offsets are stable across platforms.
func (e *Extractor) Extract(_ context.Context, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: reading content: %v", domain.ErrExtractionFailed, err)
	}

	text := string(data)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return text, nil
}
