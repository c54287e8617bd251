package domain

import "time"

// Document is a single item listed by a provider. It carries the identity
// and change-detection metadata the sync engine needs; content is fetched
// separately via DownloadDocument.
type Document struct {
	// ID is the provider-scoped stable identifier. It never changes for
	// the same logical document and is never derived from content.
	ID string

	// Filename is the base name, used for extractor selection.
	Filename string

	// RelativePath is the path within the provider's scope, when the
	// backend has one (local root, S3 prefix, drive folder).
	RelativePath string

	// ProviderType identifies the provider implementation.
	ProviderType ProviderType

	// ProviderName is the configured instance name.
	ProviderName string

	// ETag is an opaque version marker from the backend. Empty means
	// the backend does not supply one.
	ETag string

	// LastModified is the backend's modification timestamp. The zero
	// value means the backend does not supply one.
	LastModified time.Time

	// SizeBytes is the document size when known, -1 otherwise.
	SizeBytes int64

	// MimeType is the backend-reported content type, when known.
	MimeType string
}

// Key returns the store-level identity of the document. Every persisted
// table is keyed by this triple, so equal ids from different provider
// instances can never collide.
func (d Document) Key() DocumentKey {
	return DocumentKey{
		DocumentID:   d.ID,
		ProviderType: d.ProviderType,
		ProviderName: d.ProviderName,
	}
}

// HasVersionInfo reports whether the backend supplied any change-detection
// metadata. Documents without it are re-indexed on every run.
func (d Document) HasVersionInfo() bool {
	return d.ETag != "" || !d.LastModified.IsZero()
}

// DocumentKey uniquely identifies a document across all configured
// provider instances.
type DocumentKey struct {
	// DocumentID is the provider-scoped document id.
	DocumentID string

	// ProviderType identifies the provider implementation.
	ProviderType ProviderType

	// ProviderName is the configured instance name.
	ProviderName string
}

// Chunk is a contiguous slice of a document's extracted text.
type Chunk struct {
	// Position is the 0-based ordinal of the chunk within its document.
	Position int

	// Start is the rune offset of the chunk's first character in the
	// extracted text.
	Start int

	// End is the rune offset one past the chunk's last character, so
	// that []rune(text)[Start:End] reproduces Text exactly.
	End int

	// Text is the chunk content.
	Text string
}

// ChunkRecord is a chunk as persisted in the index, with its embedding and
// enough document context to render a search result.
type ChunkRecord struct {
	// DocumentID is the owning document's provider-scoped id.
	DocumentID string

	// ProviderType identifies the provider implementation.
	ProviderType ProviderType

	// ProviderName is the configured instance name.
	ProviderName string

	// Position is the 0-based chunk ordinal. (DocumentID, Position,
	// ProviderType, ProviderName) is the natural key.
	Position int

	// Start and End are rune offsets into the extracted text.
	Start int
	End   int

	// Text is the chunk content.
	Text string

	// Embedding is the chunk's vector.
	Embedding []float32

	// Filename is the document's base name at indexing time.
	Filename string

	// IndexedAt is when this record was written.
	IndexedAt time.Time
}

// Key returns the owning document's identity.
func (c ChunkRecord) Key() DocumentKey {
	return DocumentKey{
		DocumentID:   c.DocumentID,
		ProviderType: c.ProviderType,
		ProviderName: c.ProviderName,
	}
}

// TrackingRecord captures the indexed state of one document. The diff
// between provider listings and tracking records drives incremental sync.
type TrackingRecord struct {
	// DocumentID is the provider-scoped document id.
	DocumentID string

	// ProviderType identifies the provider implementation.
	ProviderType ProviderType

	// ProviderName is the configured instance name.
	ProviderName string

	// ETag is the backend version marker seen when the document was
	// last indexed. Empty if the backend supplies none.
	ETag string

	// LastModified is the backend timestamp seen when the document was
	// last indexed. Zero if the backend supplies none.
	LastModified time.Time

	// Filename is the document's base name at indexing time.
	Filename string

	// ChunkCount is how many chunks the last successful index produced.
	// Zero for documents recorded as skipped (unsupported format).
	ChunkCount int

	// IndexedAt is when the document was last indexed or skipped.
	IndexedAt time.Time
}

// Key returns the tracked document's identity.
func (t TrackingRecord) Key() DocumentKey {
	return DocumentKey{
		DocumentID:   t.DocumentID,
		ProviderType: t.ProviderType,
		ProviderName: t.ProviderName,
	}
}
