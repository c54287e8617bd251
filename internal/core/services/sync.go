package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/logger"
)

// Chunker splits extracted text into overlapping chunks.
type Chunker interface {
	Chunk(text string) []domain.Chunk
}

// ProviderSnapshot pairs a configured instance with its built provider.
// Err records a build failure (bad options, missing credentials); the run
// reports it against the instance instead of aborting.
type ProviderSnapshot struct {
	Instance domain.ProviderInstance
	Provider driven.DocumentProvider
	Err      error
}

// SnapshotSource yields the provider set a run operates on. The set is
// fixed when the run starts; instances added or removed mid-run are picked
// up by the next one.
type SnapshotSource interface {
	// Snapshot builds every enabled instance, in creation order.
	Snapshot(ctx context.Context) ([]ProviderSnapshot, error)

	// SnapshotOne builds a single instance regardless of its enabled
	// flag. Returns domain.ErrNotFound if the instance does not exist.
	SnapshotOne(ctx context.Context, providerType domain.ProviderType, name string) (ProviderSnapshot, error)
}

// SyncService drives the synchronisation pipeline: list each provider,
// diff against tracking state, push changed documents through
// download, extract, chunk, embed and store, then purge orphans.
//
// Failures are contained at two levels. A document failure marks that
// document and moves on; a provider failure (listing, build) marks the
// provider's report and moves to the next provider. Only a fatal
// condition aborts the run itself: store unreachable, snapshot failure,
// or a run already in progress.
type SyncService struct {
	snapshots  SnapshotSource
	store      driven.Store
	extraction *ExtractionService
	chunker    Chunker
	embedder   driven.EmbeddingService
	workers    int
	now        func() time.Time

	mu         sync.Mutex
	running    bool
	runID      string
	startedAt  time.Time
	current    string
	lastReport *domain.SyncReport
}

// Ensure SyncService implements the interface.
var _ driving.SyncRunner = (*SyncService)(nil)

// NewSyncService creates the sync engine. workers bounds per-provider
// document concurrency; values below one mean serial processing.
func NewSyncService(
	snapshots SnapshotSource,
	store driven.Store,
	extraction *ExtractionService,
	chunker Chunker,
	embedder driven.EmbeddingService,
	workers int,
) *SyncService {
	if workers < 1 {
		workers = 1
	}
	return &SyncService{
		snapshots:  snapshots,
		store:      store,
		extraction: extraction,
		chunker:    chunker,
		embedder:   embedder,
		workers:    workers,
		now:        time.Now,
	}
}

// Run synchronises every enabled provider instance.
func (s *SyncService) Run(ctx context.Context) (*domain.SyncReport, error) {
	return s.run(ctx, s.snapshots.Snapshot)
}

// RunProvider synchronises a single provider instance, enabled or not.
func (s *SyncService) RunProvider(ctx context.Context, providerType domain.ProviderType, name string) (*domain.SyncReport, error) {
	return s.run(ctx, func(ctx context.Context) ([]ProviderSnapshot, error) {
		snap, err := s.snapshots.SnapshotOne(ctx, providerType, name)
		if err != nil {
			return nil, err
		}
		return []ProviderSnapshot{snap}, nil
	})
}

// Status returns the current run state.
func (s *SyncService) Status() driving.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return driving.SyncStatus{
		Running:    s.running,
		RunID:      s.runID,
		StartedAt:  s.startedAt,
		Current:    s.current,
		LastReport: s.lastReport,
	}
}

func (s *SyncService) run(ctx context.Context, snapshot func(context.Context) ([]ProviderSnapshot, error)) (*domain.SyncReport, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	if err := s.store.Ping(ctx); err != nil {
		s.abort()
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	snaps, err := snapshot(ctx)
	if err != nil {
		s.abort()
		return nil, fmt.Errorf("resolving providers: %w", err)
	}

	report := &domain.SyncReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	s.mu.Lock()
	s.runID = report.RunID
	s.startedAt = report.StartedAt
	s.mu.Unlock()

	logger.Info("Sync run %s started with %d provider(s)", report.RunID, len(snaps))

	for _, snap := range snaps {
		if ctx.Err() != nil {
			break
		}
		s.setCurrent(snap.Instance.Type.String() + "/" + snap.Instance.Name)
		report.Providers = append(report.Providers, s.syncProvider(ctx, snap))
	}

	report.FinishedAt = s.now()
	s.complete(report)

	logger.Info("Sync run %s finished: %d indexed, %d removed, %d failed in %s",
		report.RunID, report.TotalIndexed(), report.TotalRemoved(), report.TotalFailed(),
		report.Duration().Round(time.Millisecond))
	return report, nil
}

func (s *SyncService) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return domain.ErrSyncInProgress
	}
	s.running = true
	return nil
}

func (s *SyncService) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runID = ""
	s.current = ""
}

func (s *SyncService) complete(report *domain.SyncReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runID = ""
	s.current = ""
	s.lastReport = report
}

func (s *SyncService) setCurrent(current string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = current
}

// syncProvider runs the full pipeline for one provider instance. It always
// returns a report; errors land in the report, never in control flow.
func (s *SyncService) syncProvider(ctx context.Context, snap ProviderSnapshot) domain.ProviderReport {
	start := s.now()
	report := domain.ProviderReport{
		ProviderType: snap.Instance.Type,
		ProviderName: snap.Instance.Name,
	}

	if snap.Err != nil {
		report.Err = snap.Err.Error()
		report.Duration = s.now().Sub(start)
		logger.Warn("Provider %s/%s skipped: %v", snap.Instance.Type, snap.Instance.Name, snap.Err)
		return report
	}

	provider := snap.Provider
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Debug("Closing provider %s/%s: %v", provider.Type(), provider.Name(), err)
		}
	}()

	listed, err := provider.ListDocuments(ctx)
	if err != nil {
		// Without a trustworthy listing nothing can be diffed; deleting
		// orphans now would purge documents the backend still has.
		report.Err = fmt.Sprintf("listing documents: %v", err)
		report.Duration = s.now().Sub(start)
		logger.Warn("Provider %s/%s listing failed: %v", provider.Type(), provider.Name(), err)
		return report
	}
	report.Listed = len(listed)

	tracked, err := s.store.ListTracking(ctx, snap.Instance.Type, snap.Instance.Name)
	if err != nil {
		report.Err = fmt.Sprintf("loading tracking state: %v", err)
		report.Duration = s.now().Sub(start)
		return report
	}

	diff := diffListing(listed, tracked)
	report.Unchanged = diff.unchanged
	logger.Debug("Provider %s/%s: %d listed, %d changed, %d unchanged, %d orphaned",
		provider.Type(), provider.Name(), len(listed), len(diff.changed), diff.unchanged, len(diff.orphans))

	s.processDocuments(ctx, provider, diff.changed, &report)
	s.removeOrphans(ctx, diff.orphans, &report)

	report.Duration = s.now().Sub(start)
	return report
}

// docOutcome is one worker's verdict on one document.
type docOutcome struct {
	skipped bool
	failure *domain.DocumentFailure
}

// processDocuments pushes changed documents through the pipeline with a
// bounded worker pool and folds the outcomes into the report.
func (s *SyncService) processDocuments(ctx context.Context, provider driven.DocumentProvider, docs []domain.Document, report *domain.ProviderReport) {
	if len(docs) == 0 {
		return
	}

	jobs := make(chan domain.Document)
	outcomes := make(chan docOutcome)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				outcomes <- s.indexDocument(ctx, provider, doc)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, doc := range docs {
			select {
			case <-ctx.Done():
				return
			case jobs <- doc:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		switch {
		case outcome.failure != nil:
			report.Failed++
			report.Failures = append(report.Failures, *outcome.failure)
			logger.Warn("Document %s failed at %s: %s",
				outcome.failure.Filename, outcome.failure.Stage, outcome.failure.Reason)
		case outcome.skipped:
			report.Skipped++
		default:
			report.Indexed++
		}
	}
}

// indexDocument runs one document through the pipeline. Tracking is only
// written after the chunks committed, so an interrupted run re-indexes the
// document instead of silently dropping it.
func (s *SyncService) indexDocument(ctx context.Context, provider driven.DocumentProvider, doc domain.Document) docOutcome {
	var outcome docOutcome
	fail := func(stage domain.SyncStage, err error) docOutcome {
		outcome.failure = &domain.DocumentFailure{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Stage:      stage,
			Reason:     err.Error(),
		}
		return outcome
	}

	if err := ctx.Err(); err != nil {
		return fail(domain.StageDownload, err)
	}

	// A document no extractor claims is skipped but still tracked, so it
	// is not re-attempted every run until its version changes.
	if !s.extraction.Supports(doc.Filename) {
		outcome.skipped = true
		if err := s.saveTracking(ctx, doc, 0); err != nil {
			return fail(domain.StageStore, err)
		}
		logger.Debug("Skipping %s: unsupported format", doc.Filename)
		return outcome
	}

	body, err := provider.DownloadDocument(ctx, doc.ID)
	if err != nil {
		return fail(domain.StageDownload, err)
	}

	text, err := s.extraction.Extract(ctx, body, doc.Filename)
	closeErr := body.Close()
	if err != nil {
		return fail(domain.StageExtract, err)
	}
	if closeErr != nil {
		return fail(domain.StageDownload, closeErr)
	}

	chunks := s.chunker.Chunk(text)
	records := make([]domain.ChunkRecord, 0, len(chunks))

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fail(domain.StageEmbed, err)
		}
		if len(embeddings) != len(chunks) {
			return fail(domain.StageEmbed, fmt.Errorf("%w: got %d embeddings for %d chunks",
				domain.ErrEmbeddingFailed, len(embeddings), len(chunks)))
		}

		indexedAt := s.now()
		for i, c := range chunks {
			records = append(records, domain.ChunkRecord{
				DocumentID:   doc.ID,
				ProviderType: doc.ProviderType,
				ProviderName: doc.ProviderName,
				Position:     c.Position,
				Start:        c.Start,
				End:          c.End,
				Text:         c.Text,
				Embedding:    embeddings[i],
				Filename:     doc.Filename,
				IndexedAt:    indexedAt,
			})
		}
	}

	// An empty record set still replaces: a document that shrank to
	// nothing keeps no stale chunks.
	if err := s.store.ReplaceDocumentChunks(ctx, doc.Key(), records); err != nil {
		return fail(domain.StageStore, err)
	}
	if err := s.saveTracking(ctx, doc, len(records)); err != nil {
		return fail(domain.StageStore, err)
	}

	logger.Debug("Indexed %s (%d chunks)", doc.Filename, len(records))
	return outcome
}

func (s *SyncService) saveTracking(ctx context.Context, doc domain.Document, chunkCount int) error {
	return s.store.SaveTracking(ctx, domain.TrackingRecord{
		DocumentID:   doc.ID,
		ProviderType: doc.ProviderType,
		ProviderName: doc.ProviderName,
		ETag:         doc.ETag,
		LastModified: doc.LastModified,
		Filename:     doc.Filename,
		ChunkCount:   chunkCount,
		IndexedAt:    s.now(),
	})
}

// removeOrphans purges index state for documents the provider no longer
// lists. Each orphan is handled on its own; one failed deletion does not
// strand the rest.
func (s *SyncService) removeOrphans(ctx context.Context, orphans []domain.TrackingRecord, report *domain.ProviderReport) {
	for _, rec := range orphans {
		if ctx.Err() != nil {
			return
		}

		key := rec.Key()
		if err := s.store.DeleteDocumentChunks(ctx, key); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, domain.DocumentFailure{
				DocumentID: rec.DocumentID,
				Filename:   rec.Filename,
				Stage:      domain.StageCleanup,
				Reason:     err.Error(),
			})
			continue
		}
		if err := s.store.DeleteTracking(ctx, key); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, domain.DocumentFailure{
				DocumentID: rec.DocumentID,
				Filename:   rec.Filename,
				Stage:      domain.StageCleanup,
				Reason:     err.Error(),
			})
			continue
		}
		report.Removed++
		logger.Debug("Removed orphaned document %s", rec.Filename)
	}
}

// IsFatal reports whether a sync error aborts the run outright rather than
// being contained in the report.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrSyncInProgress) ||
		errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, domain.ErrInvalidConfiguration) ||
		errors.Is(err, domain.ErrNotFound)
}
