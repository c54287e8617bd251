package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// bootstrapLockKey serialises schema bootstraps. Two serve processes
// starting against the same database must not race the DDL.
const bootstrapLockKey = 7424_7701

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is a Postgres + pgvector index. Similarity search runs in the
// database through the cosine distance operator, so it scales past the
// point where the SQLite backend's full scan falls over.
type Store struct {
	pool *pgxpool.Pool
	dims int
}

// NewStore connects to Postgres and bootstraps the schema. The vector
// column width is fixed to the embedding dimensionality, so changing
// embedding models needs a fresh database.
func NewStore(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is empty", domain.ErrInvalidConfiguration)
	}
	if dimensions <= 0 {
		dimensions = domain.DefaultDimensions
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	s := &Store{pool: pool, dims: dimensions}
	if err := s.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// bootstrap creates the pgvector extension and all tables under a
// session advisory lock.
func (s *Store) bootstrap(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", bootstrapLockKey); err != nil {
		return fmt.Errorf("acquiring bootstrap lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", bootstrapLockKey)
	}()

	if _, err := conn.Exec(ctx, fmt.Sprintf(schemaSQL, s.dims)); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// last_modified is kept as a unix-nanosecond integer rather than a
// TIMESTAMPTZ: Postgres timestamps carry microseconds only, and the
// sync diff compares backend modification times for exact equality.
const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
    document_id   TEXT NOT NULL,
    provider_type TEXT NOT NULL,
    provider_name TEXT NOT NULL,
    position      INTEGER NOT NULL,
    start_offset  INTEGER NOT NULL,
    end_offset    INTEGER NOT NULL,
    content       TEXT NOT NULL,
    embedding     vector(%d),
    filename      TEXT NOT NULL DEFAULT '',
    indexed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (document_id, provider_type, provider_name, position)
);

CREATE INDEX IF NOT EXISTS chunks_provider_idx ON chunks (provider_type, provider_name);
CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS documents (
    document_id      TEXT NOT NULL,
    provider_type    TEXT NOT NULL,
    provider_name    TEXT NOT NULL,
    etag             TEXT NOT NULL DEFAULT '',
    last_modified_ns BIGINT,
    filename         TEXT NOT NULL DEFAULT '',
    chunk_count      INTEGER NOT NULL DEFAULT 0,
    indexed_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (document_id, provider_type, provider_name)
);

CREATE INDEX IF NOT EXISTS documents_provider_idx ON documents (provider_type, provider_name);

CREATE TABLE IF NOT EXISTS providers (
    provider_type TEXT NOT NULL,
    name          TEXT NOT NULL,
    enabled       BOOLEAN NOT NULL DEFAULT TRUE,
    options       JSONB NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (provider_type, name)
);

CREATE TABLE IF NOT EXISTS schedules (
    id               TEXT PRIMARY KEY,
    provider_type    TEXT NOT NULL DEFAULT '',
    provider_name    TEXT NOT NULL DEFAULT '',
    interval_seconds BIGINT NOT NULL,
    last_run         TIMESTAMPTZ,
    last_error       TEXT,
    enabled          BOOLEAN NOT NULL DEFAULT TRUE
);
`

// ==================== Chunks ====================

// ReplaceDocumentChunks swaps one document's chunk set in a single
// transaction: upsert every record, then trim stale positions past the
// new count.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, key domain.DocumentKey, records []domain.ChunkRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, rec := range records {
		if rec.IndexedAt.IsZero() {
			rec.IndexedAt = time.Now().UTC()
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (document_id, provider_type, provider_name, position,
				start_offset, end_offset, content, embedding, filename, indexed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9, $10)
			ON CONFLICT (document_id, provider_type, provider_name, position) DO UPDATE SET
				start_offset = EXCLUDED.start_offset,
				end_offset = EXCLUDED.end_offset,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				filename = EXCLUDED.filename,
				indexed_at = EXCLUDED.indexed_at
		`, key.DocumentID, string(key.ProviderType), key.ProviderName, rec.Position,
			rec.Start, rec.End, rec.Text, nullableVector(rec.Embedding),
			rec.Filename, rec.IndexedAt)
		if err != nil {
			return fmt.Errorf("saving chunk %d: %w", rec.Position, err)
		}
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM chunks
		WHERE document_id = $1 AND provider_type = $2 AND provider_name = $3 AND position >= $4
	`, key.DocumentID, string(key.ProviderType), key.ProviderName, len(records))
	if err != nil {
		return fmt.Errorf("trimming stale chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk replacement: %w", err)
	}
	return nil
}

// DeleteDocumentChunks removes every chunk of one document.
func (s *Store) DeleteDocumentChunks(ctx context.Context, key domain.DocumentKey) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM chunks
		WHERE document_id = $1 AND provider_type = $2 AND provider_name = $3
	`, key.DocumentID, string(key.ProviderType), key.ProviderName)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// SearchChunks ranks chunks by cosine distance in the database. The
// ivfflat index keeps this fast on large tables; similarity is
// 1 - distance so higher still means closer.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT document_id, provider_type, provider_name, position,
			start_offset, end_offset, content, embedding::text, filename, indexed_at,
			1 - (embedding <=> $1::vector) AS score
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, vectorLiteral(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.ChunkRecord
		var embeddingText string
		var score float64
		if err := rows.Scan(&rec.DocumentID, &rec.ProviderType, &rec.ProviderName, &rec.Position,
			&rec.Start, &rec.End, &rec.Text, &embeddingText, &rec.Filename, &rec.IndexedAt, &score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		rec.Embedding = parseVector(embeddingText)
		results = append(results, domain.SearchResult{Chunk: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return results, nil
}

// CountChunks returns the total number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// ==================== Tracking ====================

// GetTracking retrieves one tracking record, nil when the document is
// not tracked.
func (s *Store) GetTracking(ctx context.Context, key domain.DocumentKey) (*domain.TrackingRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, provider_type, provider_name, etag, last_modified_ns,
			filename, chunk_count, indexed_at
		FROM documents
		WHERE document_id = $1 AND provider_type = $2 AND provider_name = $3
	`, key.DocumentID, string(key.ProviderType), key.ProviderName)

	rec, err := scanTracking(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Untracked is not an error
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTracking returns every tracking record for one provider instance,
// ordered by document id.
func (s *Store) ListTracking(ctx context.Context, providerType domain.ProviderType, providerName string) ([]domain.TrackingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, provider_type, provider_name, etag, last_modified_ns,
			filename, chunk_count, indexed_at
		FROM documents
		WHERE provider_type = $1 AND provider_name = $2
		ORDER BY document_id
	`, string(providerType), providerName)
	if err != nil {
		return nil, fmt.Errorf("querying tracking records: %w", err)
	}
	defer rows.Close()

	var records []domain.TrackingRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanTracking(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracking records: %w", err)
	}

	return records, nil
}

// SaveTracking creates or updates a tracking record.
func (s *Store) SaveTracking(ctx context.Context, rec domain.TrackingRecord) error {
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (document_id, provider_type, provider_name, etag,
			last_modified_ns, filename, chunk_count, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id, provider_type, provider_name) DO UPDATE SET
			etag = EXCLUDED.etag,
			last_modified_ns = EXCLUDED.last_modified_ns,
			filename = EXCLUDED.filename,
			chunk_count = EXCLUDED.chunk_count,
			indexed_at = EXCLUDED.indexed_at
	`, rec.DocumentID, string(rec.ProviderType), rec.ProviderName, rec.ETag,
		nullableUnixNano(rec.LastModified), rec.Filename, rec.ChunkCount, rec.IndexedAt)

	if err != nil {
		return fmt.Errorf("saving tracking record: %w", err)
	}
	return nil
}

// DeleteTracking removes a tracking record.
func (s *Store) DeleteTracking(ctx context.Context, key domain.DocumentKey) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM documents
		WHERE document_id = $1 AND provider_type = $2 AND provider_name = $3
	`, key.DocumentID, string(key.ProviderType), key.ProviderName)
	if err != nil {
		return fmt.Errorf("deleting tracking record: %w", err)
	}
	return nil
}

// scanTracking scans one tracking row via the given scan function.
func scanTracking(scan func(dest ...any) error) (*domain.TrackingRecord, error) {
	var rec domain.TrackingRecord
	var lastModifiedNs *int64

	if err := scan(&rec.DocumentID, &rec.ProviderType, &rec.ProviderName, &rec.ETag,
		&lastModifiedNs, &rec.Filename, &rec.ChunkCount, &rec.IndexedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning tracking record: %w", err)
	}

	if lastModifiedNs != nil {
		rec.LastModified = time.Unix(0, *lastModifiedNs).UTC()
	}
	return &rec, nil
}

// ==================== Providers ====================

// SaveProvider creates a provider instance.
func (s *Store) SaveProvider(ctx context.Context, inst domain.ProviderInstance) error {
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO providers (provider_type, name, enabled, options, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_type, name) DO NOTHING
	`, string(inst.Type), inst.Name, inst.Enabled, inst.Options, inst.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrAlreadyExists, inst.Type, inst.Name)
	}
	return nil
}

// GetProvider retrieves one instance.
func (s *Store) GetProvider(ctx context.Context, providerType domain.ProviderType, name string) (*domain.ProviderInstance, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT provider_type, name, enabled, options, created_at
		FROM providers
		WHERE provider_type = $1 AND name = $2
	`, string(providerType), name)

	var inst domain.ProviderInstance
	if err := row.Scan(&inst.Type, &inst.Name, &inst.Enabled, &inst.Options, &inst.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
		}
		return nil, fmt.Errorf("scanning provider: %w", err)
	}
	return &inst, nil
}

// ListProviders returns all instances in creation order.
func (s *Store) ListProviders(ctx context.Context) ([]domain.ProviderInstance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider_type, name, enabled, options, created_at
		FROM providers
		ORDER BY created_at, name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}
	defer rows.Close()

	var instances []domain.ProviderInstance //nolint:prealloc // size unknown from query
	for rows.Next() {
		var inst domain.ProviderInstance
		if err := rows.Scan(&inst.Type, &inst.Name, &inst.Enabled, &inst.Options, &inst.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning provider: %w", err)
		}
		instances = append(instances, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating providers: %w", err)
	}

	return instances, nil
}

// DeleteProvider removes an instance.
func (s *Store) DeleteProvider(ctx context.Context, providerType domain.ProviderType, name string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM providers WHERE provider_type = $1 AND name = $2
	`, string(providerType), name)
	if err != nil {
		return fmt.Errorf("deleting provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	return nil
}

// SetProviderEnabled flips an instance's enabled flag.
func (s *Store) SetProviderEnabled(ctx context.Context, providerType domain.ProviderType, name string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE providers SET enabled = $1 WHERE provider_type = $2 AND name = $3
	`, enabled, string(providerType), name)
	if err != nil {
		return fmt.Errorf("updating provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	return nil
}

// ==================== Schedules ====================

// GetSchedule retrieves a schedule by ID, nil when absent.
func (s *Store) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider_type, provider_name, interval_seconds, last_run, last_error, enabled
		FROM schedules
		WHERE id = $1
	`, id)

	schedule, err := scanSchedule(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Per interface: absent schedule is not an error
	}
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// ListSchedules returns all schedules ordered by ID.
func (s *Store) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_type, provider_name, interval_seconds, last_run, last_error, enabled
		FROM schedules
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule //nolint:prealloc // size unknown from query
	for rows.Next() {
		schedule, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}

	return schedules, nil
}

// SaveSchedule creates or updates a schedule.
func (s *Store) SaveSchedule(ctx context.Context, schedule domain.Schedule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO schedules (id, provider_type, provider_name, interval_seconds, last_run, last_error, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			provider_type = EXCLUDED.provider_type,
			provider_name = EXCLUDED.provider_name,
			interval_seconds = EXCLUDED.interval_seconds,
			last_run = EXCLUDED.last_run,
			last_error = EXCLUDED.last_error,
			enabled = EXCLUDED.enabled
	`, schedule.ID, string(schedule.ProviderType), schedule.ProviderName,
		int64(schedule.Interval.Seconds()), nullableTime(schedule.LastRun),
		nullableString(schedule.LastError), schedule.Enabled)

	if err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	return nil
}

// scanSchedule scans one schedule row via the given scan function.
func scanSchedule(scan func(dest ...any) error) (*domain.Schedule, error) {
	var schedule domain.Schedule
	var intervalSeconds int64
	var lastRun *time.Time
	var lastError *string

	if err := scan(&schedule.ID, &schedule.ProviderType, &schedule.ProviderName,
		&intervalSeconds, &lastRun, &lastError, &schedule.Enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}

	schedule.Interval = time.Duration(intervalSeconds) * time.Second
	if lastRun != nil {
		schedule.LastRun = *lastRun
	}
	if lastError != nil {
		schedule.LastError = *lastError
	}
	return &schedule, nil
}

// ==================== Helper Functions ====================

// vectorLiteral renders a pgvector input literal: [0.25,-0.5,1].
func vectorLiteral(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, f := range embedding {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// nullableVector renders a pgvector literal, nil for an empty vector so
// the column stays NULL.
func nullableVector(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return vectorLiteral(embedding)
}

// parseVector decodes pgvector's text output back into a float slice.
func parseVector(text string) []float32 {
	text = strings.Trim(text, "[]")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			continue
		}
		vec = append(vec, float32(f))
	}
	return vec
}

// nullableUnixNano converts a time to unix nanoseconds, nil for zero.
func nullableUnixNano(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

// nullableTime returns nil for zero time, otherwise the time itself.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// nullableString returns nil for empty strings, otherwise the string.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
