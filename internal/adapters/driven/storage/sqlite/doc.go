// Package sqlite provides the single-file store backend.
//
// The adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that needs no CGO, so cross-compiled binaries keep working. One
// database file holds all four persistence concerns: embedded chunks,
// document tracking records, provider instances and sync schedules.
//
// Embeddings are stored as little-endian float32 blobs and similarity
// search is a brute-force cosine scan in Go. That is the right
// trade-off for a personal index of up to a few hundred thousand
// chunks; installs beyond that should use the postgres backend.
//
// # Schema
//
// The schema is managed through versioned .up.sql migrations embedded
// from the migrations/ directory.
//
// # Data Location
//
// By default the database lives at ~/.trawl/index.db.
//
// # Thread Safety
//
// All operations are safe for concurrent use. The store relies on
// database-level locking provided by SQLite in WAL mode.
package sqlite
