package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dslipak/pdf"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// MaxDocumentSize caps how much of a PDF is buffered for parsing. The
// parser needs random access, so the whole document is held in memory.
const MaxDocumentSize = 64 << 20 // 64 MiB

// Extractor handles PDF documents.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the filename extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"pdf"}
}

// Extract parses the PDF and returns its plain text content. Encrypted
// or malformed documents wrap domain.ErrExtractionFailed.
func (e *Extractor) Extract(_ context.Context, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading content: %v", domain.ErrExtractionFailed, err)
	}
	if len(data) > MaxDocumentSize {
		return "", fmt.Errorf("%w: document exceeds %d bytes", domain.ErrExtractionFailed, MaxDocumentSize)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: opening pdf: %v", domain.ErrExtractionFailed, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: reading pdf text: %v", domain.ErrExtractionFailed, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: reading pdf text: %v", domain.ErrExtractionFailed, err)
	}

	return buf.String(), nil
}
