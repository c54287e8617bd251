package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/trawlhq/trawl/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// timeLayout preserves sub-second precision so round-tripped backend
// modification times still compare equal in the sync diff.
const timeLayout = time.RFC3339Nano

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is a single-file SQLite index covering chunks, document
// tracking, provider instances and schedules. One database serves all
// four concerns so chunk replacement and tracking updates share the
// same file and WAL.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the SQLite database at the given file path, creating
// it and its parent directory when missing. An empty path defaults to
// ~/.trawl/index.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".trawl", "index.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Sort and run migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Chunks ====================

// ReplaceDocumentChunks swaps one document's chunk set in a single
// transaction: upsert every record, then trim stale positions past the
// new count. Readers observe the old set or the new set, never a mix.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, key domain.DocumentKey, records []domain.ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, rec := range records {
		if rec.IndexedAt.IsZero() {
			rec.IndexedAt = time.Now().UTC()
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (document_id, provider_type, provider_name, position,
				start_offset, end_offset, content, embedding, filename, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(document_id, provider_type, provider_name, position) DO UPDATE SET
				start_offset = excluded.start_offset,
				end_offset = excluded.end_offset,
				content = excluded.content,
				embedding = excluded.embedding,
				filename = excluded.filename,
				indexed_at = excluded.indexed_at
		`, key.DocumentID, string(key.ProviderType), key.ProviderName, rec.Position,
			rec.Start, rec.End, rec.Text, float32SliceToBytes(rec.Embedding),
			rec.Filename, formatTime(rec.IndexedAt))
		if err != nil {
			return fmt.Errorf("saving chunk %d: %w", rec.Position, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM chunks
		WHERE document_id = ? AND provider_type = ? AND provider_name = ? AND position >= ?
	`, key.DocumentID, string(key.ProviderType), key.ProviderName, len(records))
	if err != nil {
		return fmt.Errorf("trimming stale chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk replacement: %w", err)
	}
	return nil
}

// DeleteDocumentChunks removes every chunk of one document.
func (s *Store) DeleteDocumentChunks(ctx context.Context, key domain.DocumentKey) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM chunks
		WHERE document_id = ? AND provider_type = ? AND provider_name = ?
	`, key.DocumentID, string(key.ProviderType), key.ProviderName)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// SearchChunks scans every stored embedding and ranks by cosine
// similarity. Brute force holds up fine at the index sizes a single
// SQLite file serves; larger installs use the postgres backend.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, provider_type, provider_name, position,
			start_offset, end_offset, content, embedding, filename, indexed_at
		FROM chunks
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.SearchResult{
			Chunk: rec,
			Score: cosineSimilarity(embedding, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
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
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// scanChunk scans a single chunk row.
func scanChunk(rows *sql.Rows) (domain.ChunkRecord, error) {
	var rec domain.ChunkRecord
	var embeddingBlob []byte
	var indexedAt string

	if err := rows.Scan(&rec.DocumentID, &rec.ProviderType, &rec.ProviderName, &rec.Position,
		&rec.Start, &rec.End, &rec.Text, &embeddingBlob, &rec.Filename, &indexedAt); err != nil {
		return domain.ChunkRecord{}, fmt.Errorf("scanning chunk: %w", err)
	}

	rec.Embedding = bytesToFloat32Slice(embeddingBlob)
	rec.IndexedAt = parseTime(indexedAt)
	return rec, nil
}

// ==================== Tracking ====================

// GetTracking retrieves one tracking record, nil when the document is
// not tracked.
func (s *Store) GetTracking(ctx context.Context, key domain.DocumentKey) (*domain.TrackingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, provider_type, provider_name, etag, last_modified,
			filename, chunk_count, indexed_at
		FROM documents
		WHERE document_id = ? AND provider_type = ? AND provider_name = ?
	`, key.DocumentID, string(key.ProviderType), key.ProviderName)

	var rec domain.TrackingRecord
	var lastModified sql.NullString
	var indexedAt string
	if err := row.Scan(&rec.DocumentID, &rec.ProviderType, &rec.ProviderName, &rec.ETag,
		&lastModified, &rec.Filename, &rec.ChunkCount, &indexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Untracked is not an error
		}
		return nil, fmt.Errorf("scanning tracking record: %w", err)
	}

	rec.LastModified = parseNullableTime(lastModified)
	rec.IndexedAt = parseTime(indexedAt)
	return &rec, nil
}

// ListTracking returns every tracking record for one provider instance,
// ordered by document id.
func (s *Store) ListTracking(ctx context.Context, providerType domain.ProviderType, providerName string) ([]domain.TrackingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, provider_type, provider_name, etag, last_modified,
			filename, chunk_count, indexed_at
		FROM documents
		WHERE provider_type = ? AND provider_name = ?
		ORDER BY document_id
	`, string(providerType), providerName)
	if err != nil {
		return nil, fmt.Errorf("querying tracking records: %w", err)
	}
	defer rows.Close()

	var records []domain.TrackingRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rec domain.TrackingRecord
		var lastModified sql.NullString
		var indexedAt string
		if err := rows.Scan(&rec.DocumentID, &rec.ProviderType, &rec.ProviderName, &rec.ETag,
			&lastModified, &rec.Filename, &rec.ChunkCount, &indexedAt); err != nil {
			return nil, fmt.Errorf("scanning tracking record: %w", err)
		}
		rec.LastModified = parseNullableTime(lastModified)
		rec.IndexedAt = parseTime(indexedAt)
		records = append(records, rec)
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, provider_type, provider_name, etag,
			last_modified, filename, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, provider_type, provider_name) DO UPDATE SET
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			filename = excluded.filename,
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at
	`, rec.DocumentID, string(rec.ProviderType), rec.ProviderName, rec.ETag,
		formatNullableTime(rec.LastModified), rec.Filename, rec.ChunkCount,
		formatTime(rec.IndexedAt))

	if err != nil {
		return fmt.Errorf("saving tracking record: %w", err)
	}
	return nil
}

// DeleteTracking removes a tracking record.
func (s *Store) DeleteTracking(ctx context.Context, key domain.DocumentKey) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE document_id = ? AND provider_type = ? AND provider_name = ?
	`, key.DocumentID, string(key.ProviderType), key.ProviderName)
	if err != nil {
		return fmt.Errorf("deleting tracking record: %w", err)
	}
	return nil
}

// ==================== Providers ====================

// SaveProvider creates a provider instance. The INSERT OR IGNORE plus
// affected-row check keeps the uniqueness test and the insert in one
// statement.
func (s *Store) SaveProvider(ctx context.Context, inst domain.ProviderInstance) error {
	optionsJSON, err := json.Marshal(inst.Options)
	if err != nil {
		return fmt.Errorf("marshalling options: %w", err)
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO providers (provider_type, name, enabled, options, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(inst.Type), inst.Name, boolToInt(inst.Enabled), string(optionsJSON),
		formatTime(inst.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving provider: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving provider: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrAlreadyExists, inst.Type, inst.Name)
	}
	return nil
}

// GetProvider retrieves one instance.
func (s *Store) GetProvider(ctx context.Context, providerType domain.ProviderType, name string) (*domain.ProviderInstance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider_type, name, enabled, options, created_at
		FROM providers
		WHERE provider_type = ? AND name = ?
	`, string(providerType), name)

	inst, err := scanProvider(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// ListProviders returns all instances in creation order.
func (s *Store) ListProviders(ctx context.Context) ([]domain.ProviderInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_type, name, enabled, options, created_at
		FROM providers
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}
	defer rows.Close()

	var instances []domain.ProviderInstance //nolint:prealloc // size unknown from query
	for rows.Next() {
		inst, err := scanProvider(rows.Scan)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating providers: %w", err)
	}

	return instances, nil
}

// DeleteProvider removes an instance. Its indexed documents are the
// caller's concern.
func (s *Store) DeleteProvider(ctx context.Context, providerType domain.ProviderType, name string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM providers WHERE provider_type = ? AND name = ?
	`, string(providerType), name)
	if err != nil {
		return fmt.Errorf("deleting provider: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting provider: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	return nil
}

// SetProviderEnabled flips an instance's enabled flag.
func (s *Store) SetProviderEnabled(ctx context.Context, providerType domain.ProviderType, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE providers SET enabled = ? WHERE provider_type = ? AND name = ?
	`, boolToInt(enabled), string(providerType), name)
	if err != nil {
		return fmt.Errorf("updating provider: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating provider: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: provider %s/%s", domain.ErrNotFound, providerType, name)
	}
	return nil
}

// scanProvider scans one provider row via the given scan function.
func scanProvider(scan func(dest ...any) error) (*domain.ProviderInstance, error) {
	var inst domain.ProviderInstance
	var enabled int
	var optionsJSON string
	var createdAt string

	if err := scan(&inst.Type, &inst.Name, &enabled, &optionsJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning provider: %w", err)
	}

	if optionsJSON != "" && optionsJSON != jsonNull {
		if err := json.Unmarshal([]byte(optionsJSON), &inst.Options); err != nil {
			return nil, fmt.Errorf("unmarshaling options: %w", err)
		}
	}

	inst.Enabled = enabled == 1
	inst.CreatedAt = parseTime(createdAt)
	return &inst, nil
}

// ==================== Schedules ====================

// GetSchedule retrieves a schedule by ID, nil when absent.
func (s *Store) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_type, provider_name, interval_seconds, last_run, last_error, enabled
		FROM schedules
		WHERE id = ?
	`, id)

	schedule, err := scanSchedule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil // Per interface: absent schedule is not an error
	}
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// ListSchedules returns all schedules ordered by ID.
func (s *Store) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (id, provider_type, provider_name, interval_seconds, last_run, last_error, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider_type = excluded.provider_type,
			provider_name = excluded.provider_name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			last_error = excluded.last_error,
			enabled = excluded.enabled
	`, schedule.ID, string(schedule.ProviderType), schedule.ProviderName,
		int64(schedule.Interval.Seconds()), formatNullableTime(schedule.LastRun),
		nullString(schedule.LastError), boolToInt(schedule.Enabled))

	if err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	return nil
}

// scanSchedule scans one schedule row via the given scan function.
func scanSchedule(scan func(dest ...any) error) (*domain.Schedule, error) {
	var schedule domain.Schedule
	var intervalSeconds int64
	var lastRun, lastError sql.NullString
	var enabled int

	if err := scan(&schedule.ID, &schedule.ProviderType, &schedule.ProviderName,
		&intervalSeconds, &lastRun, &lastError, &enabled); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}

	schedule.Interval = time.Duration(intervalSeconds) * time.Second
	schedule.LastRun = parseNullableTime(lastRun)
	if lastError.Valid {
		schedule.LastError = lastError.String
	}
	schedule.Enabled = enabled == 1
	return &schedule, nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths compare over the shorter prefix; a zero vector
// scores zero.
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

// formatTime formats a time as RFC3339 with nanoseconds, in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses an RFC3339 string. Returns zero time on parse error.
func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatNullableTime formats a time to an RFC3339 string, or returns
// nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// parseNullableTime parses a nullable RFC3339 string to time.Time.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	return parseTime(s.String)
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
