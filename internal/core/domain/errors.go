package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration indicates settings or provider options that
	// cannot produce a working pipeline (bad chunk geometry, unknown
	// backend, missing required option). Fails the run before any
	// document is touched.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrSyncInProgress indicates a sync run is already active.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrRateLimited indicates an upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Provider Errors.

	// ErrProviderUnavailable indicates a provider backend could not be
	// reached or refused the request. Listing failures carry this; the
	// run continues with the next provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrDocumentNotFound indicates a document id the provider backend
	// no longer has, typically because it was deleted between listing
	// and download.
	ErrDocumentNotFound = errors.New("document not found")

	// Pipeline Errors.

	// ErrUnsupportedFormat indicates no extractor is registered for the
	// document's filename extension. The document is skipped, not failed.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailed indicates the bytes could not be converted to
	// text (corrupt archive, malformed PDF).
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingFailed indicates the embedding provider rejected a
	// batch after the adapter's internal retries were exhausted.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Nothing can be indexed or searched without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Ask/answer synthesis is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Storage Errors.

	// ErrStoreUnavailable indicates the index store cannot be reached.
	// This is fatal for a sync run: without the store there is nothing
	// meaningful to do.
	ErrStoreUnavailable = errors.New("store unavailable")
)
