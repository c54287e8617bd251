// Package postgres provides the Postgres + pgvector store backend.
//
// Similarity search runs inside the database through pgvector's cosine
// distance operator backed by an ivfflat index, so it stays fast where
// the SQLite backend's brute-force scan would not. Schema bootstrap is
// guarded by a session advisory lock and is safe to run from several
// processes at once.
//
// The embedding column width is fixed at connect time from the
// configured dimensionality; switching embedding models requires a
// fresh database.
//
// Integration tests need a reachable database with the vector
// extension installed; set TRAWL_TEST_POSTGRES_DSN to run them.
package postgres
