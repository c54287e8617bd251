package driven

import (
	"context"
	"io"
)

// TextExtractor converts document bytes into plain text for chunking.
// Extractors are selected by filename extension and must be pure: the
// same bytes always yield the same text, with no side effects.
type TextExtractor interface {
	// Extensions returns the filename extensions this extractor handles,
	// lowercase and without the leading dot.
	Extensions() []string

	// Extract reads the document and returns its text content. The
	// filename is advisory (some formats encode titles or structure by
	// name). Unreadable input wraps domain.ErrExtractionFailed.
	Extract(ctx context.Context, r io.Reader, filename string) (string, error)
}
