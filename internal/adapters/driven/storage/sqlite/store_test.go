package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// newTestStore creates a SQLite store backed by a temp file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testKey(docID string) domain.DocumentKey {
	return domain.DocumentKey{
		DocumentID:   docID,
		ProviderType: domain.ProviderLocal,
		ProviderName: "docs",
	}
}

func testChunk(key domain.DocumentKey, position int, text string, embedding []float32) domain.ChunkRecord {
	return domain.ChunkRecord{
		DocumentID:   key.DocumentID,
		ProviderType: key.ProviderType,
		ProviderName: key.ProviderName,
		Position:     position,
		Start:        position * 100,
		End:          position*100 + len(text),
		Text:         text,
		Embedding:    embedding,
		Filename:     "notes.md",
		IndexedAt:    time.Now().UTC(),
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "index.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)
}

func TestNewStore_InvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join("/invalid\x00dir", "index.db"))
	assert.Error(t, err)
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveTracking(ctx, domain.TrackingRecord{
		DocumentID:   "doc-1",
		ProviderType: domain.ProviderLocal,
		ProviderName: "docs",
		ETag:         "v1",
	}))
	require.NoError(t, store.Close())

	// Reopening replays no migrations and keeps existing rows.
	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.GetTracking(ctx, testKey("doc-1"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "v1", rec.ETag)
}

func TestStore_Ping(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

// ==================== Chunk Tests ====================

func TestReplaceDocumentChunks_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := testKey("doc-1")

	want := testChunk(key, 0, "installation guide", []float32{0.25, -0.5, 1.0})
	require.NoError(t, store.ReplaceDocumentChunks(ctx, key, []domain.ChunkRecord{want}))

	results, err := store.SearchChunks(ctx, []float32{0.25, -0.5, 1.0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0].Chunk
	assert.Equal(t, key.DocumentID, got.DocumentID)
	assert.Equal(t, key.ProviderType, got.ProviderType)
	assert.Equal(t, key.ProviderName, got.ProviderName)
	assert.Equal(t, want.Position, got.Position)
	assert.Equal(t, want.Start, got.Start)
	assert.Equal(t, want.End, got.End)
	assert.Equal(t, want.Text, got.Text)
	assert.Equal(t, want.Embedding, got.Embedding)
	assert.Equal(t, want.Filename, got.Filename)
	assert.WithinDuration(t, want.IndexedAt, got.IndexedAt, time.Second)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestReplaceDocumentChunks_TrimsStalePositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := testKey("doc-1")

	five := make([]domain.ChunkRecord, 5)
	for i := range five {
		five[i] = testChunk(key, i, "old", []float32{1, 0})
	}
	require.NoError(t, store.ReplaceDocumentChunks(ctx, key, five))

	three := make([]domain.ChunkRecord, 3)
	for i := range three {
		three[i] = testChunk(key, i, "new", []float32{1, 0})
	}
	require.NoError(t, store.ReplaceDocumentChunks(ctx, key, three))

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := store.SearchChunks(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, "new", res.Chunk.Text)
	}
}

func TestReplaceDocumentChunks_EmptyRemovesAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := testKey("doc-1")

	require.NoError(t, store.ReplaceDocumentChunks(ctx, key, []domain.ChunkRecord{
		testChunk(key, 0, "text", []float32{1}),
		testChunk(key, 1, "more", []float32{1}),
	}))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, key, nil))

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteDocumentChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	keep := testKey("doc-keep")
	drop := testKey("doc-drop")

	require.NoError(t, store.ReplaceDocumentChunks(ctx, keep, []domain.ChunkRecord{testChunk(keep, 0, "keep", []float32{1})}))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, drop, []domain.ChunkRecord{testChunk(drop, 0, "drop", []float32{1})}))

	require.NoError(t, store.DeleteDocumentChunks(ctx, drop))

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Deleting a document with no chunks is not an error.
	assert.NoError(t, store.DeleteDocumentChunks(ctx, drop))
}

func TestSearchChunks_RanksByCosine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	near := testKey("doc-near")
	mid := testKey("doc-mid")
	far := testKey("doc-far")
	require.NoError(t, store.ReplaceDocumentChunks(ctx, near, []domain.ChunkRecord{testChunk(near, 0, "near", []float32{1, 0})}))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, mid, []domain.ChunkRecord{testChunk(mid, 0, "mid", []float32{1, 1})}))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, far, []domain.ChunkRecord{testChunk(far, 0, "far", []float32{0, 1})}))

	results, err := store.SearchChunks(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "near", results[0].Chunk.Text)
	assert.Equal(t, "mid", results[1].Chunk.Text)
	assert.Equal(t, "far", results[2].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestSearchChunks_Limit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := testKey("doc-1")

	records := make([]domain.ChunkRecord, 8)
	for i := range records {
		records[i] = testChunk(key, i, "text", []float32{1, 0})
	}
	require.NoError(t, store.ReplaceDocumentChunks(ctx, key, records))

	results, err := store.SearchChunks(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = store.SearchChunks(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchChunks_EmptyIndex(t *testing.T) {
	store := newTestStore(t)

	results, err := store.SearchChunks(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCountChunks_Empty(t *testing.T) {
	store := newTestStore(t)

	count, err := store.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// ==================== Tracking Tests ====================

func TestSaveTracking_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Nanosecond precision must survive the round trip, otherwise the
	// sync diff would re-index unchanged local files forever.
	lastMod := time.Date(2025, 3, 14, 9, 30, 0, 123456789, time.UTC)
	want := domain.TrackingRecord{
		DocumentID:   "doc-1",
		ProviderType: domain.ProviderLocal,
		ProviderName: "docs",
		ETag:         "abc-123",
		LastModified: lastMod,
		Filename:     "guide.md",
		ChunkCount:   4,
		IndexedAt:    time.Now(),
	}
	require.NoError(t, store.SaveTracking(ctx, want))

	got, err := store.GetTracking(ctx, testKey("doc-1"))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.DocumentID, got.DocumentID)
	assert.Equal(t, want.ProviderType, got.ProviderType)
	assert.Equal(t, want.ProviderName, got.ProviderName)
	assert.Equal(t, want.ETag, got.ETag)
	assert.True(t, got.LastModified.Equal(lastMod), "got %v, want %v", got.LastModified, lastMod)
	assert.Equal(t, want.Filename, got.Filename)
	assert.Equal(t, want.ChunkCount, got.ChunkCount)
	assert.WithinDuration(t, want.IndexedAt, got.IndexedAt, time.Second)
}

func TestSaveTracking_ZeroLastModified(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTracking(ctx, domain.TrackingRecord{
		DocumentID:   "doc-1",
		ProviderType: domain.ProviderS3,
		ProviderName: "archive",
		ETag:         "etag-only",
	}))

	got, err := store.GetTracking(ctx, domain.DocumentKey{
		DocumentID:   "doc-1",
		ProviderType: domain.ProviderS3,
		ProviderName: "archive",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.LastModified.IsZero())
}

func TestGetTracking_AbsentIsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetTracking(context.Background(), testKey("missing"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveTracking_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := domain.TrackingRecord{
		DocumentID:   "doc-1",
		ProviderType: domain.ProviderLocal,
		ProviderName: "docs",
		ETag:         "v1",
		ChunkCount:   2,
	}
	require.NoError(t, store.SaveTracking(ctx, rec))

	rec.ETag = "v2"
	rec.ChunkCount = 5
	require.NoError(t, store.SaveTracking(ctx, rec))

	got, err := store.GetTracking(ctx, testKey("doc-1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.ETag)
	assert.Equal(t, 5, got.ChunkCount)
}

func TestListTracking_FiltersByProviderAndSorts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, rec := range []domain.TrackingRecord{
		{DocumentID: "b-doc", ProviderType: domain.ProviderLocal, ProviderName: "docs"},
		{DocumentID: "a-doc", ProviderType: domain.ProviderLocal, ProviderName: "docs"},
		{DocumentID: "c-doc", ProviderType: domain.ProviderLocal, ProviderName: "other"},
		{DocumentID: "d-doc", ProviderType: domain.ProviderS3, ProviderName: "docs"},
	} {
		require.NoError(t, store.SaveTracking(ctx, rec))
	}

	records, err := store.ListTracking(ctx, domain.ProviderLocal, "docs")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a-doc", records[0].DocumentID)
	assert.Equal(t, "b-doc", records[1].DocumentID)
}

func TestDeleteTracking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTracking(ctx, domain.TrackingRecord{
		DocumentID:   "doc-1",
		ProviderType: domain.ProviderLocal,
		ProviderName: "docs",
	}))
	require.NoError(t, store.DeleteTracking(ctx, testKey("doc-1")))

	got, err := store.GetTracking(ctx, testKey("doc-1"))
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an untracked document is not an error.
	assert.NoError(t, store.DeleteTracking(ctx, testKey("doc-1")))
}

// ==================== Provider Tests ====================

func TestSaveProvider_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := domain.ProviderInstance{
		Type:    domain.ProviderS3,
		Name:    "archive",
		Enabled: true,
		Options: map[string]string{"bucket": "team-docs", "prefix": "guides/"},
	}
	require.NoError(t, store.SaveProvider(ctx, want))

	got, err := store.GetProvider(ctx, domain.ProviderS3, "archive")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Name, got.Name)
	assert.True(t, got.Enabled)
	assert.Equal(t, want.Options, got.Options)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveProvider_DuplicateFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst := domain.ProviderInstance{Type: domain.ProviderLocal, Name: "docs", Enabled: true}
	require.NoError(t, store.SaveProvider(ctx, inst))

	err := store.SaveProvider(ctx, inst)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSaveProvider_SameNameDifferentType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProvider(ctx, domain.ProviderInstance{Type: domain.ProviderLocal, Name: "docs"}))
	assert.NoError(t, store.SaveProvider(ctx, domain.ProviderInstance{Type: domain.ProviderS3, Name: "docs"}))
}

func TestGetProvider_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetProvider(context.Background(), domain.ProviderLocal, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListProviders_CreationOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, store.SaveProvider(ctx, domain.ProviderInstance{
			Type:      domain.ProviderLocal,
			Name:      name,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	instances, err := store.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.Equal(t, "first", instances[0].Name)
	assert.Equal(t, "second", instances[1].Name)
	assert.Equal(t, "third", instances[2].Name)
}

func TestDeleteProvider(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProvider(ctx, domain.ProviderInstance{Type: domain.ProviderLocal, Name: "docs"}))
	require.NoError(t, store.DeleteProvider(ctx, domain.ProviderLocal, "docs"))

	_, err := store.GetProvider(ctx, domain.ProviderLocal, "docs")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.DeleteProvider(ctx, domain.ProviderLocal, "docs")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetProviderEnabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProvider(ctx, domain.ProviderInstance{Type: domain.ProviderLocal, Name: "docs", Enabled: true}))
	require.NoError(t, store.SetProviderEnabled(ctx, domain.ProviderLocal, "docs", false))

	got, err := store.GetProvider(ctx, domain.ProviderLocal, "docs")
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	err = store.SetProviderEnabled(ctx, domain.ProviderLocal, "missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ==================== Schedule Tests ====================

func TestSaveSchedule_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lastRun := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	want := domain.Schedule{
		ID:           "full-sync",
		ProviderType: domain.ProviderS3,
		ProviderName: "archive",
		Interval:     90 * time.Minute,
		LastRun:      lastRun,
		LastError:    "bucket unreachable",
		Enabled:      true,
	}
	require.NoError(t, store.SaveSchedule(ctx, want))

	got, err := store.GetSchedule(ctx, "full-sync")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ProviderType, got.ProviderType)
	assert.Equal(t, want.ProviderName, got.ProviderName)
	assert.Equal(t, want.Interval, got.Interval)
	assert.True(t, got.LastRun.Equal(lastRun))
	assert.Equal(t, want.LastError, got.LastError)
	assert.True(t, got.Enabled)
}

func TestGetSchedule_AbsentIsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetSchedule(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveSchedule_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	schedule := domain.Schedule{ID: "full-sync", Interval: time.Hour, Enabled: true}
	require.NoError(t, store.SaveSchedule(ctx, schedule))

	schedule.Interval = 2 * time.Hour
	schedule.LastRun = time.Now().UTC()
	schedule.Enabled = false
	require.NoError(t, store.SaveSchedule(ctx, schedule))

	got, err := store.GetSchedule(ctx, "full-sync")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2*time.Hour, got.Interval)
	assert.False(t, got.LastRun.IsZero())
	assert.False(t, got.Enabled)
	assert.Empty(t, got.LastError)
}

func TestListSchedules_OrderedByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, store.SaveSchedule(ctx, domain.Schedule{ID: id, Interval: time.Hour}))
	}

	schedules, err := store.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 3)
	assert.Equal(t, "alpha", schedules[0].ID)
	assert.Equal(t, "bravo", schedules[1].ID)
	assert.Equal(t, "charlie", schedules[2].ID)
}

func TestDeleteSchedule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSchedule(ctx, domain.Schedule{ID: "full-sync", Interval: time.Hour}))
	require.NoError(t, store.DeleteSchedule(ctx, "full-sync"))

	got, err := store.GetSchedule(ctx, "full-sync")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, store.DeleteSchedule(ctx, "full-sync"))
}

// ==================== Persistence Tests ====================

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()
	key := testKey("doc-1")

	store, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, store.SaveProvider(ctx, domain.ProviderInstance{Type: domain.ProviderLocal, Name: "docs", Enabled: true}))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, key, []domain.ChunkRecord{testChunk(key, 0, "persisted", []float32{1, 0})}))
	require.NoError(t, store.SaveTracking(ctx, domain.TrackingRecord{
		DocumentID:   key.DocumentID,
		ProviderType: key.ProviderType,
		ProviderName: key.ProviderName,
		ETag:         "v1",
		ChunkCount:   1,
	}))
	require.NoError(t, store.SaveSchedule(ctx, domain.Schedule{ID: "full-sync", Interval: time.Hour, Enabled: true}))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := store.SearchChunks(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted", results[0].Chunk.Text)

	rec, err := store.GetTracking(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "v1", rec.ETag)

	instances, err := store.ListProviders(ctx)
	require.NoError(t, err)
	assert.Len(t, instances, 1)

	schedule, err := store.GetSchedule(ctx, "full-sync")
	require.NoError(t, err)
	require.NotNil(t, schedule)
	assert.Equal(t, time.Hour, schedule.Interval)
}
