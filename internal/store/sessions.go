package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wordhoard/wordhoard/internal/schema"
)

// CreateSession inserts a practice-session event fact. Sessions are
// insert-only: a conflicting client session id is an idempotent no-op, not
// an error.
func (s *Store) CreateSession(ctx context.Context, rec *schema.SessionRecord) error {
	if rec.LocalID == "" {
		rec.LocalID = uuid.NewString()
	}
	if rec.ClientSessionID == "" {
		rec.ClientSessionID = uuid.NewString()
	}
	if rec.ClientUpdatedAt.IsZero() {
		rec.ClientUpdatedAt = time.Now()
	}
	rec.ClientSessionID = schema.NormalizeKey(rec.ClientSessionID)
	rec.Status = schema.StatusCreated

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	query := `
	INSERT INTO sessions (
		local_id, remote_id, profile_id, client_session_id, mode,
		words_seen, correct_count, started_at, duration_ms,
		client_updated_at, dirty_status, changed_fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'created', '[]')
	ON CONFLICT(profile_id, client_session_id) DO NOTHING
	`

	_, err := s.conn.ExecContext(ctx, query,
		rec.LocalID,
		nullIfEmpty(rec.RemoteID),
		rec.ProfileID,
		rec.ClientSessionID,
		rec.Mode,
		rec.WordsSeen,
		rec.CorrectCount,
		formatTime(rec.StartedAt),
		rec.DurationMS,
		formatTime(rec.ClientUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", rec.ClientSessionID, err)
	}

	return nil
}

// GetSessionByKey retrieves one session by client session id.
// Returns sql.ErrNoRows if absent.
func (s *Store) GetSessionByKey(ctx context.Context, profileID, clientSessionID string) (*schema.SessionRecord, error) {
	row := s.conn.QueryRowContext(ctx, sessionSelect+" WHERE profile_id = ? AND client_session_id = ?",
		profileID, schema.NormalizeKey(clientSessionID))
	rec, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return rec, nil
}

// ListSessions returns all sessions for a profile ordered by start time.
func (s *Store) ListSessions(ctx context.Context, profileID string) ([]*schema.SessionRecord, error) {
	rows, err := s.conn.QueryContext(ctx, sessionSelect+" WHERE profile_id = ? ORDER BY started_at", profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*schema.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

const sessionSelect = `
	SELECT local_id, remote_id, profile_id, client_session_id, mode,
	       words_seen, correct_count, started_at, duration_ms,
	       client_updated_at, dirty_status, changed_fields
	FROM sessions`

func scanSession(sc rowScanner) (*schema.SessionRecord, error) {
	var rec schema.SessionRecord
	var remoteID sql.NullString
	var startedAt, updatedAt, status, changedJSON string

	err := sc.Scan(
		&rec.LocalID,
		&remoteID,
		&rec.ProfileID,
		&rec.ClientSessionID,
		&rec.Mode,
		&rec.WordsSeen,
		&rec.CorrectCount,
		&startedAt,
		&rec.DurationMS,
		&updatedAt,
		&status,
		&changedJSON,
	)
	if err != nil {
		return nil, err
	}

	rec.RemoteID = remoteID.String
	rec.StartedAt = parseTime(startedAt)
	rec.ClientUpdatedAt = parseTime(updatedAt)
	rec.Status = schema.DirtyStatus(status)
	rec.Changed = decodeChanged(changedJSON)
	return &rec, nil
}

// upsertSessionTx writes a reconciled session inside an apply transaction.
// Session payloads are immutable, so a business-key conflict only records
// the remote acknowledgement; the stored fact is left alone.
func upsertSessionTx(ctx context.Context, tx *sql.Tx, rec *schema.SessionRecord) error {
	changedJSON, err := encodeChanged(rec.Changed)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO sessions (
		local_id, remote_id, profile_id, client_session_id, mode,
		words_seen, correct_count, started_at, duration_ms,
		client_updated_at, dirty_status, changed_fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id, client_session_id) DO UPDATE SET
		remote_id = excluded.remote_id,
		dirty_status = excluded.dirty_status,
		changed_fields = excluded.changed_fields
	`

	_, err = tx.ExecContext(ctx, query,
		rec.LocalID,
		nullIfEmpty(rec.RemoteID),
		rec.ProfileID,
		schema.NormalizeKey(rec.ClientSessionID),
		rec.Mode,
		rec.WordsSeen,
		rec.CorrectCount,
		formatTime(rec.StartedAt),
		rec.DurationMS,
		formatTime(rec.ClientUpdatedAt),
		string(rec.Status),
		changedJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to apply session %s: %w", rec.ClientSessionID, err)
	}
	return nil
}
