package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/wordhoard/wordhoard/internal/schema"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the backend's SQLite database. Server timestamps are stored as
// unix nanoseconds so incremental pulls can compare them in SQL.
type DB struct {
	conn *sql.DB
}

// OpenDB creates or opens the backend database at the given path.
func OpenDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create server data directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open server database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping server database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// InitSchema creates the backend tables. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS words (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		text TEXT NOT NULL,
		text_key TEXT NOT NULL,
		times_used INTEGER NOT NULL DEFAULT 0,
		times_correct INTEGER NOT NULL DEFAULT 0,
		last_practiced_at TEXT,
		favorite INTEGER NOT NULL DEFAULT 0,
		mastery_level INTEGER NOT NULL DEFAULT 0,
		client_updated_at TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (profile_id, text_key)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		client_session_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		words_seen INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		client_updated_at TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (profile_id, client_session_id)
	);

	CREATE TABLE IF NOT EXISTS mode_settings (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		difficulty INTEGER NOT NULL DEFAULT 1,
		client_updated_at TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (profile_id, mode)
	);

	CREATE TABLE IF NOT EXISTS tenant_resets (
		profile_id TEXT PRIMARY KEY,
		reset_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_srv_words_changes ON words(profile_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_srv_sessions_changes ON sessions(profile_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_srv_modes_changes ON mode_settings(profile_id, updated_at);
	`

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize server schema: %w", err)
	}
	return nil
}

// deriveMastery recomputes the server-computed mastery level from the
// cumulative correct-answer history. This is the only writer of
// mastery_level; client-submitted values are accepted on the wire but never
// stored.
func deriveMastery(timesCorrect int64) int {
	switch {
	case timesCorrect >= 30:
		return 5
	case timesCorrect >= 15:
		return 4
	case timesCorrect >= 7:
		return 3
	case timesCorrect >= 3:
		return 2
	case timesCorrect >= 1:
		return 1
	default:
		return 0
	}
}

// UpsertWord applies one pushed word under the declared merge policies:
// counters take the max, last-writer-wins fields follow the strictly newer
// client timestamp (the stored value wins ties), and mastery is recomputed
// from the merged counters.
func (db *DB) UpsertWord(ctx context.Context, w *schema.WordRecord, now int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		id              string
		timesUsed       int64
		timesCorrect    int64
		lastPracticed   sql.NullString
		favorite        int
		clientUpdatedAt string
	)
	row := tx.QueryRowContext(ctx,
		`SELECT id, times_used, times_correct, last_practiced_at, favorite, client_updated_at
		 FROM words WHERE profile_id = ? AND text_key = ?`,
		w.ProfileID, w.Key())
	err = row.Scan(&id, &timesUsed, &timesCorrect, &lastPracticed, &favorite, &clientUpdatedAt)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
		INSERT INTO words (id, profile_id, text, text_key, times_used, times_correct,
			last_practiced_at, favorite, mastery_level, client_updated_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), w.ProfileID, w.Text, w.Key(), w.TimesUsed, w.TimesCorrect,
			timeToNull(w.LastPracticedAt), boolToInt(w.Favorite),
			deriveMastery(w.TimesCorrect), formatClientTime(w.ClientUpdatedAt), now)
		if err != nil {
			return fmt.Errorf("failed to insert word: %w", err)
		}

	case err != nil:
		return fmt.Errorf("failed to read word: %w", err)

	default:
		stored := parseClientTime(clientUpdatedAt)
		incomingWins := w.ClientUpdatedAt.After(stored)

		if w.TimesUsed > timesUsed {
			timesUsed = w.TimesUsed
		}
		if w.TimesCorrect > timesCorrect {
			timesCorrect = w.TimesCorrect
		}
		if incomingWins {
			lastPracticed = timeToNull(w.LastPracticedAt)
			favorite = boolToInt(w.Favorite)
			clientUpdatedAt = formatClientTime(w.ClientUpdatedAt)
		}

		_, err = tx.ExecContext(ctx, `
		UPDATE words SET times_used = ?, times_correct = ?, last_practiced_at = ?,
			favorite = ?, mastery_level = ?, client_updated_at = ?, updated_at = ?
		WHERE id = ?`,
			timesUsed, timesCorrect, lastPracticed, favorite,
			deriveMastery(timesCorrect), clientUpdatedAt, now, id)
		if err != nil {
			return fmt.Errorf("failed to merge word: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit word upsert: %w", err)
	}
	return nil
}

// InsertSession stores one session fact. Insert-only: a duplicate client
// session id is an idempotent no-op.
func (db *DB) InsertSession(ctx context.Context, rec *schema.SessionRecord, now int64) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO sessions (id, profile_id, client_session_id, mode, words_seen,
		correct_count, started_at, duration_ms, client_updated_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id, client_session_id) DO NOTHING`,
		uuid.NewString(), rec.ProfileID, rec.Key(), rec.Mode, rec.WordsSeen,
		rec.CorrectCount, formatClientTime(rec.StartedAt), rec.DurationMS,
		formatClientTime(rec.ClientUpdatedAt), now)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// UpsertModeSetting applies one pushed mode setting under last-writer-wins.
// The stored row wins unless the incoming client timestamp is strictly
// newer. Timestamps are compared as parsed times; the text column is not
// lexicographically ordered once fractional seconds come into play.
func (db *DB) UpsertModeSetting(ctx context.Context, rec *schema.ModeSettingRecord, now int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mode setting upsert: %w", err)
	}
	defer tx.Rollback()

	var (
		id              string
		clientUpdatedAt string
	)
	row := tx.QueryRowContext(ctx,
		`SELECT id, client_updated_at FROM mode_settings WHERE profile_id = ? AND mode = ?`,
		rec.ProfileID, rec.Key())
	err = row.Scan(&id, &clientUpdatedAt)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
		INSERT INTO mode_settings (id, profile_id, mode, enabled, difficulty, client_updated_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), rec.ProfileID, rec.Key(), boolToInt(rec.Enabled),
			rec.Difficulty, formatClientTime(rec.ClientUpdatedAt), now)
		if err != nil {
			return fmt.Errorf("failed to insert mode setting: %w", err)
		}

	case err != nil:
		return fmt.Errorf("failed to read mode setting: %w", err)

	case rec.ClientUpdatedAt.After(parseClientTime(clientUpdatedAt)):
		_, err = tx.ExecContext(ctx, `
		UPDATE mode_settings SET enabled = ?, difficulty = ?, client_updated_at = ?, updated_at = ?
		WHERE id = ?`,
			boolToInt(rec.Enabled), rec.Difficulty,
			formatClientTime(rec.ClientUpdatedAt), now, id)
		if err != nil {
			return fmt.Errorf("failed to merge mode setting: %w", err)
		}

	default:
		// Losing write; refresh updated_at only.
		if _, err := tx.ExecContext(ctx,
			`UPDATE mode_settings SET updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("failed to touch mode setting: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mode setting upsert: %w", err)
	}
	return nil
}

// ChangesSince returns every record for the profile newer than since (all of
// them when since is zero).
func (db *DB) ChangesSince(ctx context.Context, profileID string, since int64) (*schema.Changeset, error) {
	out := &schema.Changeset{}

	rows, err := db.conn.QueryContext(ctx, `
	SELECT id, text, times_used, times_correct, last_practiced_at, favorite,
	       mastery_level, client_updated_at
	FROM words WHERE profile_id = ? AND updated_at > ?`, profileID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query word changes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var w schema.WordRecord
		var lastPracticed sql.NullString
		var favorite int
		var clientUpdatedAt string
		if err := rows.Scan(&w.RemoteID, &w.Text, &w.TimesUsed, &w.TimesCorrect,
			&lastPracticed, &favorite, &w.MasteryLevel, &clientUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan word change: %w", err)
		}
		w.LocalID = w.RemoteID
		w.ProfileID = profileID
		w.LastPracticedAt = nullToTime(lastPracticed)
		w.Favorite = favorite != 0
		w.ClientUpdatedAt = parseClientTime(clientUpdatedAt)
		out.Words = append(out.Words, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating word changes: %w", err)
	}

	srows, err := db.conn.QueryContext(ctx, `
	SELECT id, client_session_id, mode, words_seen, correct_count, started_at,
	       duration_ms, client_updated_at
	FROM sessions WHERE profile_id = ? AND updated_at > ?`, profileID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query session changes: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var rec schema.SessionRecord
		var startedAt, clientUpdatedAt string
		if err := srows.Scan(&rec.RemoteID, &rec.ClientSessionID, &rec.Mode,
			&rec.WordsSeen, &rec.CorrectCount, &startedAt, &rec.DurationMS, &clientUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session change: %w", err)
		}
		rec.LocalID = rec.RemoteID
		rec.ProfileID = profileID
		rec.StartedAt = parseClientTime(startedAt)
		rec.ClientUpdatedAt = parseClientTime(clientUpdatedAt)
		out.Sessions = append(out.Sessions, &rec)
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session changes: %w", err)
	}

	mrows, err := db.conn.QueryContext(ctx, `
	SELECT id, mode, enabled, difficulty, client_updated_at
	FROM mode_settings WHERE profile_id = ? AND updated_at > ?`, profileID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query mode setting changes: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var rec schema.ModeSettingRecord
		var enabled int
		var clientUpdatedAt string
		if err := mrows.Scan(&rec.RemoteID, &rec.Mode, &enabled, &rec.Difficulty, &clientUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mode setting change: %w", err)
		}
		rec.LocalID = rec.RemoteID
		rec.ProfileID = profileID
		rec.Enabled = enabled != 0
		rec.ClientUpdatedAt = parseClientTime(clientUpdatedAt)
		out.ModeSettings = append(out.ModeSettings, &rec)
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mode setting changes: %w", err)
	}

	return out, nil
}

// KeySets returns the authoritative business-key sets for a profile.
func (db *DB) KeySets(ctx context.Context, profileID string) (*schema.KeySets, error) {
	out := &schema.KeySets{}

	collect := func(query string, dest *[]string) error {
		rows, err := db.conn.QueryContext(ctx, query, profileID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return err
			}
			*dest = append(*dest, k)
		}
		return rows.Err()
	}

	if err := collect("SELECT text_key FROM words WHERE profile_id = ?", &out.Words); err != nil {
		return nil, fmt.Errorf("failed to collect word keys: %w", err)
	}
	if err := collect("SELECT client_session_id FROM sessions WHERE profile_id = ?", &out.Sessions); err != nil {
		return nil, fmt.Errorf("failed to collect session keys: %w", err)
	}
	if err := collect("SELECT mode FROM mode_settings WHERE profile_id = ?", &out.ModeSettings); err != nil {
		return nil, fmt.Errorf("failed to collect mode keys: %w", err)
	}
	return out, nil
}

// ResetProfile wipes every record for a profile and records the reset so
// clients with older cursors wipe their local copies too.
func (db *DB) ResetProfile(ctx context.Context, profileID string, now int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"words", "sessions", "mode_settings"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE profile_id = ?", table), profileID); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO tenant_resets (profile_id, reset_at) VALUES (?, ?)
	ON CONFLICT(profile_id) DO UPDATE SET reset_at = excluded.reset_at`, profileID, now)
	if err != nil {
		return fmt.Errorf("failed to record reset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

// ResetAt returns the profile's last tenant reset, or nil.
func (db *DB) ResetAt(ctx context.Context, profileID string) (*time.Time, error) {
	var nanos int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT reset_at FROM tenant_resets WHERE profile_id = ?", profileID).Scan(&nanos)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant reset: %w", err)
	}
	t := time.Unix(0, nanos).UTC()
	return &t, nil
}

func formatClientTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseClientTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timeToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatClientTime(*t), Valid: true}
}

func nullToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseClientTime(ns.String)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
