package extractors

import (
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/extractors/docx"
	"github.com/trawlhq/trawl/internal/extractors/html"
	"github.com/trawlhq/trawl/internal/extractors/markdown"
	"github.com/trawlhq/trawl/internal/extractors/pdf"
	"github.com/trawlhq/trawl/internal/extractors/plaintext"
)

// Registry accepts extractor registrations. Implemented by the extraction
// service; first registration per extension wins.
type Registry interface {
	Register(extractor driven.TextExtractor)
}

// RegisterDefaults wires the stock extractors into the registry. Specific
// formats are registered before the plaintext fallback so their extensions
// are never claimed by it.
func RegisterDefaults(r Registry) {
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
	r.Register(plaintext.New())
}
