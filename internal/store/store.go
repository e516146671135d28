// Package store provides the embedded per-device SQLite store for wordhoard.
//
// The store holds per-profile collections (words, sessions, mode settings)
// plus the sync cursor table. It runs in embedded mode with WAL so readers
// are never blocked by the sync engine's writes.
//
// Every local mutation goes through a tracked setter that updates the
// record's dirty status and changed-field set in the same transaction as the
// data write. There is deliberately no exported path that writes a record
// without tracking: a record mutated outside the tracked path would look
// synced while carrying unsynced data, which the engine could never repair.
// Remote state enters only through ApplyChangeset, which writes records with
// the dirty status the merge engine decided.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with sync-aware accessors.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store database at the given path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// Storage corruption surfaces here as a setup error; it is fatal and never
// retried. The caller must Close when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// WALPath returns the path of the WAL sidecar file. The daemon watches it to
// notice out-of-band local writes.
func (s *Store) WALPath() string { return s.path + "-wal" }

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist.
// Idempotent; safe to call on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS words (
		local_id TEXT PRIMARY KEY,
		remote_id TEXT,
		profile_id TEXT NOT NULL,
		text TEXT NOT NULL,
		text_key TEXT NOT NULL,
		times_used INTEGER NOT NULL DEFAULT 0,
		times_correct INTEGER NOT NULL DEFAULT 0,
		last_practiced_at TEXT,
		favorite INTEGER NOT NULL DEFAULT 0,
		mastery_level INTEGER NOT NULL DEFAULT 0,
		client_updated_at TEXT NOT NULL,
		dirty_status TEXT NOT NULL DEFAULT 'created',
		changed_fields TEXT NOT NULL DEFAULT '[]',
		UNIQUE (profile_id, text_key)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		local_id TEXT PRIMARY KEY,
		remote_id TEXT,
		profile_id TEXT NOT NULL,
		client_session_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		words_seen INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		client_updated_at TEXT NOT NULL,
		dirty_status TEXT NOT NULL DEFAULT 'created',
		changed_fields TEXT NOT NULL DEFAULT '[]',
		UNIQUE (profile_id, client_session_id)
	);

	CREATE TABLE IF NOT EXISTS mode_settings (
		local_id TEXT PRIMARY KEY,
		remote_id TEXT,
		profile_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		difficulty INTEGER NOT NULL DEFAULT 1,
		client_updated_at TEXT NOT NULL,
		dirty_status TEXT NOT NULL DEFAULT 'created',
		changed_fields TEXT NOT NULL DEFAULT '[]',
		UNIQUE (profile_id, mode)
	);

	CREATE TABLE IF NOT EXISTS sync_cursors (
		profile_id TEXT PRIMARY KEY,
		last_pulled_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_words_profile ON words(profile_id);
	CREATE INDEX IF NOT EXISTS idx_words_dirty ON words(profile_id, dirty_status);
	CREATE INDEX IF NOT EXISTS idx_sessions_profile ON sessions(profile_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_dirty ON sessions(profile_id, dirty_status);
	CREATE INDEX IF NOT EXISTS idx_modes_dirty ON mode_settings(profile_id, dirty_status);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// timeToNullString converts a time pointer to a nullable RFC3339 string.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable RFC3339 string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// formatTime renders a required timestamp column.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a required timestamp column, tolerating a zero value.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mergeChanged unions newly-changed field names into a stored JSON array.
func mergeChanged(storedJSON string, names []string) (string, error) {
	var current []string
	if storedJSON != "" {
		if err := json.Unmarshal([]byte(storedJSON), &current); err != nil {
			return "", fmt.Errorf("failed to parse changed_fields: %w", err)
		}
	}
	seen := make(map[string]bool, len(current))
	for _, n := range current {
		seen[n] = true
	}
	for _, n := range names {
		if !seen[n] {
			current = append(current, n)
			seen[n] = true
		}
	}
	out, err := json.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("failed to marshal changed_fields: %w", err)
	}
	return string(out), nil
}

// decodeChanged parses a stored changed_fields column.
func decodeChanged(storedJSON string) []string {
	if storedJSON == "" || storedJSON == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(storedJSON), &out); err != nil {
		return nil
	}
	return out
}
