package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is an in-memory implementation of driven.Store. Similarity search
// is a brute-force cosine scan, fine for tests and small indexes.
type Store struct {
	mu            sync.RWMutex
	chunks        map[domain.DocumentKey][]domain.ChunkRecord
	tracking      map[domain.DocumentKey]domain.TrackingRecord
	providers     map[string]domain.ProviderInstance
	providerOrder []string
	schedules     map[string]domain.Schedule
	closed        bool
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		chunks:    make(map[domain.DocumentKey][]domain.ChunkRecord),
		tracking:  make(map[domain.DocumentKey]domain.TrackingRecord),
		providers: make(map[string]domain.ProviderInstance),
		schedules: make(map[string]domain.Schedule),
	}
}

// ==================== Chunks ====================

// ReplaceDocumentChunks swaps one document's chunk set.
func (s *Store) ReplaceDocumentChunks(_ context.Context, key domain.DocumentKey, records []domain.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) == 0 {
		delete(s.chunks, key)
		return nil
	}
	s.chunks[key] = append([]domain.ChunkRecord(nil), records...)
	return nil
}

// DeleteDocumentChunks removes every chunk of one document.
func (s *Store) DeleteDocumentChunks(_ context.Context, key domain.DocumentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, key)
	return nil
}

// SearchChunks scans every stored chunk and returns the nearest, best first.
func (s *Store) SearchChunks(_ context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []domain.SearchResult
	for _, records := range s.chunks {
		for _, rec := range records {
			results = append(results, domain.SearchResult{
				Chunk: rec,
				Score: cosineSimilarity(embedding, rec.Embedding),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// Deterministic order for equal scores.
		if results[i].Chunk.DocumentID != results[j].Chunk.DocumentID {
			return results[i].Chunk.DocumentID < results[j].Chunk.DocumentID
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CountChunks returns the total number of stored chunks.
func (s *Store) CountChunks(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, records := range s.chunks {
		n += len(records)
	}
	return n, nil
}

// ==================== Tracking ====================

// GetTracking retrieves one tracking record, nil when absent.
func (s *Store) GetTracking(_ context.Context, key domain.DocumentKey) (*domain.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tracking[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListTracking returns every tracking record for one provider instance,
// ordered by document id.
func (s *Store) ListTracking(_ context.Context, providerType domain.ProviderType, providerName string) ([]domain.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []domain.TrackingRecord
	for _, rec := range s.tracking {
		if rec.ProviderType == providerType && rec.ProviderName == providerName {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DocumentID < records[j].DocumentID
	})
	return records, nil
}

// SaveTracking creates or updates a tracking record.
func (s *Store) SaveTracking(_ context.Context, rec domain.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking[rec.Key()] = rec
	return nil
}

// DeleteTracking removes a tracking record.
func (s *Store) DeleteTracking(_ context.Context, key domain.DocumentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracking, key)
	return nil
}

// ==================== Providers ====================

// SaveProvider creates a provider instance.
func (s *Store) SaveProvider(_ context.Context, inst domain.ProviderInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := providerKey(inst.Type, inst.Name)
	if _, exists := s.providers[key]; exists {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrAlreadyExists, inst.Type, inst.Name)
	}
	s.providers[key] = inst
	s.providerOrder = append(s.providerOrder, key)
	return nil
}

// GetProvider retrieves one instance.
func (s *Store) GetProvider(_ context.Context, providerType domain.ProviderType, name string) (*domain.ProviderInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.providers[providerKey(providerType, name)]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	return &inst, nil
}

// ListProviders returns all instances in creation order.
func (s *Store) ListProviders(_ context.Context) ([]domain.ProviderInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instances := make([]domain.ProviderInstance, 0, len(s.providerOrder))
	for _, key := range s.providerOrder {
		if inst, ok := s.providers[key]; ok {
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

// DeleteProvider removes an instance.
func (s *Store) DeleteProvider(_ context.Context, providerType domain.ProviderType, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := providerKey(providerType, name)
	if _, ok := s.providers[key]; !ok {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	delete(s.providers, key)
	for i, k := range s.providerOrder {
		if k == key {
			s.providerOrder = append(s.providerOrder[:i], s.providerOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SetProviderEnabled flips an instance's enabled flag.
func (s *Store) SetProviderEnabled(_ context.Context, providerType domain.ProviderType, name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := providerKey(providerType, name)
	inst, ok := s.providers[key]
	if !ok {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	inst.Enabled = enabled
	s.providers[key] = inst
	return nil
}

// ==================== Schedules ====================

// GetSchedule retrieves a schedule by ID, nil when absent.
func (s *Store) GetSchedule(_ context.Context, id string) (*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, nil
	}
	return &schedule, nil
}

// ListSchedules returns all schedules ordered by ID.
func (s *Store) ListSchedules(_ context.Context) ([]domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedules := make([]domain.Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		schedules = append(schedules, schedule)
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].ID < schedules[j].ID
	})
	return schedules, nil
}

// SaveSchedule creates or updates a schedule.
func (s *Store) SaveSchedule(_ context.Context, schedule domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.ID] = schedule
	return nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, id)
	return nil
}

// ==================== Lifecycle ====================

// Ping reports the store as reachable unless it was closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreUnavailable
	}
	return nil
}

// Close marks the store unusable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func providerKey(providerType domain.ProviderType, name string) string {
	return string(providerType) + "/" + name
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths compare over the shorter prefix; a zero vector scores
// zero.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
