// Package store persists canonical price rows in SQLite, keyed by
// (ticker, date) with upsert-on-conflict semantics.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the SQLite-backed price store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database file at path. WAL mode and a
// busy timeout keep concurrent readers workable. Open does not create the
// schema; that is cmd/initdb's job.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS prices (
	ticker       TEXT NOT NULL,
	date         TEXT NOT NULL,
	open         REAL,
	high         REAL,
	low          REAL,
	close        REAL,
	adj_close    REAL,
	volume       INTEGER,
	source       TEXT NOT NULL,
	fetched_at   TEXT NOT NULL,
	raw_checksum TEXT NOT NULL,
	PRIMARY KEY (ticker, date)
);

CREATE TABLE IF NOT EXISTS ingest_logs (
	job_id        TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	fetched_at    TEXT NOT NULL,
	raw_checksum  TEXT,
	rows          INTEGER NOT NULL,
	filepath      TEXT,
	status        TEXT NOT NULL,
	error_message TEXT,
	created_at    TEXT NOT NULL
);
`

// InitSchema creates the prices and ingest_logs tables if absent.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Initialized reports whether the prices table exists. The pipeline skips
// store writes against an uninitialized database instead of failing the
// ingest.
func (s *Store) Initialized(ctx context.Context) bool {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='prices'`).Scan(&name)
	return err == nil
}
