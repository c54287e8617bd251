package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// ExtractionService routes documents to text extractors by file extension.
// Registration is first-wins per extension, so specific formats must be
// registered before catch-all fallbacks.
type ExtractionService struct {
	extractors map[string]driven.TextExtractor
}

// NewExtractionService creates an empty extraction registry.
func NewExtractionService() *ExtractionService {
	return &ExtractionService{
		extractors: make(map[string]driven.TextExtractor),
	}
}

// Register claims the extractor's extensions. Extensions already claimed by
// an earlier registration are left untouched. Not safe for concurrent use;
// registration happens once at startup.
func (s *ExtractionService) Register(extractor driven.TextExtractor) {
	for _, ext := range extractor.Extensions() {
		key := normaliseExtension(ext)
		if key == "" {
			continue
		}
		if _, taken := s.extractors[key]; taken {
			continue
		}
		s.extractors[key] = extractor
	}
}

// ExtractorFor returns the extractor registered for the filename's
// extension, or false when the format is unsupported.
func (s *ExtractionService) ExtractorFor(filename string) (driven.TextExtractor, bool) {
	ext := normaliseExtension(filepath.Ext(filename))
	if ext == "" {
		return nil, false
	}
	extractor, ok := s.extractors[ext]
	return extractor, ok
}

// Supports reports whether the filename's extension has an extractor.
func (s *ExtractionService) Supports(filename string) bool {
	_, ok := s.ExtractorFor(filename)
	return ok
}

// SupportedExtensions returns all registered extensions, sorted.
func (s *ExtractionService) SupportedExtensions() []string {
	exts := make([]string, 0, len(s.extractors))
	for ext := range s.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the document and returns its plain text. Returns
// domain.ErrUnsupportedFormat when no extractor claims the extension.
func (s *ExtractionService) Extract(ctx context.Context, r io.Reader, filename string) (string, error) {
	extractor, ok := s.ExtractorFor(filename)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(filename))
	}

	text, err := extractor.Extract(ctx, r, filename)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	return text, nil
}

// normaliseExtension lowercases and strips the leading dot so "PDF",
// ".pdf" and "pdf" all address the same extractor slot.
func normaliseExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
