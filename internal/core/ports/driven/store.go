package driven

import (
	"context"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// ChunkStore persists embedded chunks and serves similarity search.
type ChunkStore interface {
	// ReplaceDocumentChunks atomically replaces every stored chunk of
	// one document with the given records. Readers observe the old set
	// or the new set, never a mix. Stale positions beyond the new count
	// are removed in the same transaction, so a document that shrinks
	// from five chunks to three keeps no leftovers.
	ReplaceDocumentChunks(ctx context.Context, key domain.DocumentKey, records []domain.ChunkRecord) error

	// DeleteDocumentChunks removes every chunk of one document.
	// Deleting a document with no chunks is not an error.
	DeleteDocumentChunks(ctx context.Context, key domain.DocumentKey) error

	// SearchChunks returns the chunks nearest to the query embedding,
	// best first, at most limit results. An empty index yields an empty
	// result.
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error)

	// CountChunks returns the total number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// TrackingStore persists per-document indexed state for change detection.
type TrackingStore interface {
	// GetTracking retrieves one tracking record.
	// Returns nil and no error if the document is not tracked.
	GetTracking(ctx context.Context, key domain.DocumentKey) (*domain.TrackingRecord, error)

	// ListTracking returns every tracking record for one provider
	// instance.
	ListTracking(ctx context.Context, providerType domain.ProviderType, providerName string) ([]domain.TrackingRecord, error)

	// SaveTracking creates or updates a tracking record.
	SaveTracking(ctx context.Context, rec domain.TrackingRecord) error

	// DeleteTracking removes a tracking record. Deleting an untracked
	// document is not an error.
	DeleteTracking(ctx context.Context, key domain.DocumentKey) error
}

// ProviderStore persists configured provider instances.
type ProviderStore interface {
	// SaveProvider creates a provider instance.
	// Returns domain.ErrAlreadyExists if (type, name) is taken.
	SaveProvider(ctx context.Context, inst domain.ProviderInstance) error

	// GetProvider retrieves one instance.
	// Returns domain.ErrNotFound if it does not exist.
	GetProvider(ctx context.Context, providerType domain.ProviderType, name string) (*domain.ProviderInstance, error)

	// ListProviders returns all instances in creation order.
	ListProviders(ctx context.Context) ([]domain.ProviderInstance, error)

	// DeleteProvider removes an instance. Its indexed documents are the
	// caller's concern.
	DeleteProvider(ctx context.Context, providerType domain.ProviderType, name string) error

	// SetProviderEnabled flips an instance's participation in sync runs.
	SetProviderEnabled(ctx context.Context, providerType domain.ProviderType, name string, enabled bool) error
}

// ScheduleStore persists serve-mode sync schedules.
type ScheduleStore interface {
	// GetSchedule retrieves a schedule by ID.
	// Returns nil and no error if the schedule does not exist.
	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)

	// ListSchedules returns all schedules.
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)

	// SaveSchedule creates or updates a schedule.
	SaveSchedule(ctx context.Context, schedule domain.Schedule) error

	// DeleteSchedule removes a schedule.
	DeleteSchedule(ctx context.Context, id string) error
}

// Store is the unified persistence handle. One backing database serves
// all four concerns so chunk replacement and tracking updates share
// transactions where the backend supports it.
type Store interface {
	ChunkStore
	TrackingStore
	ProviderStore
	ScheduleStore

	// Ping verifies the backing database is reachable. Failures wrap
	// domain.ErrStoreUnavailable.
	Ping(ctx context.Context) error

	// Close releases the database handle.
	Close() error
}
