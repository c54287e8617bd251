package driving

import (
	"context"
	"time"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// SyncRunner coordinates document synchronisation from providers into the
// index.
type SyncRunner interface {
	// Run executes a full pass over every enabled provider instance and
	// returns the run report. Partial failures are recorded in the
	// report, not returned as errors; a non-nil error means the run
	// could not proceed at all (store unreachable, invalid
	// configuration, run already active).
	Run(ctx context.Context) (*domain.SyncReport, error)

	// RunProvider executes a pass over a single provider instance.
	RunProvider(ctx context.Context, providerType domain.ProviderType, name string) (*domain.SyncReport, error)

	// Status returns the current run state.
	Status() SyncStatus
}

// SyncStatus represents the current state of the sync engine.
type SyncStatus struct {
	// Running indicates if a run is currently in progress.
	Running bool

	// RunID identifies the active run, empty when idle.
	RunID string

	// StartedAt is when the active run began.
	StartedAt time.Time

	// Current is the provider instance being processed, "type/name".
	Current string

	// LastReport is the most recent completed run's report, nil before
	// the first run.
	LastReport *domain.SyncReport
}
