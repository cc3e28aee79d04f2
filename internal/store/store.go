// Package store provides a SQLite-backed history of ingestion runs.
// Every invocation of the literature pipeline is recorded with its query,
// counts and outcome so operators can audit what was loaded into the
// vector index and when.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Run is one recorded ingestion pipeline invocation.
type Run struct {
	// ID is the autoincrement row id.
	ID int64 `json:"id"`
	// Query is the PubMed search term the run ingested.
	Query string `json:"query"`
	// Fetched is the number of documents retrieved from the source.
	Fetched int `json:"fetched"`
	// Skipped is the number of documents dropped for having no abstract.
	Skipped int `json:"skipped"`
	// Upserted is the number of vectors written to the index.
	Upserted int `json:"upserted"`
	// Batches is the number of upsert batches issued.
	Batches int `json:"batches"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// DurationMS is the wall-clock time the run took, in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// Error holds the failure text for runs that did not complete; empty
	// for successful runs.
	Error string `json:"error,omitempty"`
}

// RunStore persists and retrieves ingestion runs. Implementations must be
// safe for concurrent use.
type RunStore interface {
	// Append persists a single run record.
	Append(ctx context.Context, run Run) error
	// Recent returns up to n runs, newest-first.
	Recent(ctx context.Context, n int) ([]Run, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a RunStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the run history database.
// It resolves to ~/.gskai/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".gskai")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    query        TEXT    NOT NULL,
    fetched      INTEGER NOT NULL,
    skipped      INTEGER NOT NULL,
    upserted     INTEGER NOT NULL,
    batches      INTEGER NOT NULL,
    started_at   INTEGER NOT NULL,  -- Unix timestamp (seconds)
    duration_ms  INTEGER NOT NULL,
    error        TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started
    ON ingestion_runs (started_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single run record.
func (s *SQLiteStore) Append(ctx context.Context, run Run) error {
	const q = `INSERT INTO ingestion_runs
    (query, fetched, skipped, upserted, batches, started_at, duration_ms, error)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		run.Query, run.Fetched, run.Skipped, run.Upserted, run.Batches,
		run.StartedAt.Unix(), run.DurationMS, run.Error)
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns up to n runs, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Run, error) {
	const q = `
SELECT id, query, fetched, skipped, upserted, batches, started_at, duration_ms, error
FROM   ingestion_runs
ORDER  BY started_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ts int64
		if err := rows.Scan(&r.ID, &r.Query, &r.Fetched, &r.Skipped, &r.Upserted,
			&r.Batches, &ts, &r.DurationMS, &r.Error); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		r.StartedAt = time.Unix(ts, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return runs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
