package driven

import (
	"context"
	"io"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// DocumentProvider is the capability contract every document backend
// implements. The sync engine is written entirely against this interface;
// adding a backend means implementing it and registering a factory.
//
// Implementations must be safe for concurrent use: the engine downloads
// documents from a worker pool while holding the listing.
type DocumentProvider interface {
	// Type identifies the provider implementation.
	Type() domain.ProviderType

	// Name returns the configured instance name.
	Name() string

	// ListDocuments returns a point-in-time snapshot of every document
	// in the provider's scope, with whatever change-detection metadata
	// the backend supplies. Order is not significant. Failures wrap
	// domain.ErrProviderUnavailable.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DownloadDocument streams the raw bytes of one document. The
	// caller owns the ReadCloser. An id the backend no longer has
	// yields domain.ErrDocumentNotFound.
	DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error)

	// Metadata returns the current listing entry for one document
	// without downloading it.
	Metadata(ctx context.Context, id string) (domain.Document, error)

	// Probe performs a cheap authenticated call against the backend and
	// reports reachability. It never mutates anything.
	Probe(ctx context.Context) domain.ProbeResult

	// Close releases any held connections. The provider is unusable
	// afterwards.
	Close() error
}

// SecretSource resolves provider credentials that are stored outside the
// provider table (API keys, client secrets). Keys are option names; the
// empty string means not set.
type SecretSource interface {
	// Secret returns the credential for one provider instance option.
	Secret(providerType domain.ProviderType, providerName, option string) string
}

// ProviderFactory builds a configured DocumentProvider from a stored
// instance. One factory per provider type, registered at startup.
type ProviderFactory interface {
	// Type identifies which provider type this factory builds.
	Type() domain.ProviderType

	// RequiredOptions lists option keys that must be present before a
	// provider can be built.
	RequiredOptions() []string

	// SecretOptions lists option keys that hold credentials. These are
	// prompted for at configuration time and resolved via SecretSource
	// at build time, never persisted with the instance.
	SecretOptions() []string

	// Build constructs a provider for the instance. Missing or invalid
	// options wrap domain.ErrInvalidConfiguration; the backend is not
	// contacted.
	Build(ctx context.Context, inst domain.ProviderInstance, secrets SecretSource) (DocumentProvider, error)
}
