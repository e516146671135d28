package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Cursor returns the per-profile sync cursor: the server timestamp of the
// last fully-applied pull. A nil cursor means "full resync".
func (s *Store) Cursor(ctx context.Context, profileID string) (*time.Time, error) {
	var pulled sql.NullString
	err := s.conn.QueryRowContext(ctx,
		"SELECT last_pulled_at FROM sync_cursors WHERE profile_id = ?", profileID).Scan(&pulled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync cursor: %w", err)
	}
	return nullStringToTime(pulled), nil
}

// SetCursor advances the cursor to the remote-reported timestamp. Callers
// must only do this after the round's changeset is durably applied.
func (s *Store) SetCursor(ctx context.Context, profileID string, t time.Time) error {
	query := `
	INSERT INTO sync_cursors (profile_id, last_pulled_at) VALUES (?, ?)
	ON CONFLICT(profile_id) DO UPDATE SET last_pulled_at = excluded.last_pulled_at
	`
	if _, err := s.conn.ExecContext(ctx, query, profileID, formatTime(t)); err != nil {
		return fmt.Errorf("failed to set sync cursor: %w", err)
	}
	return nil
}

// ClearCursor resets the cursor to null, forcing the next round to pull
// everything.
func (s *Store) ClearCursor(ctx context.Context, profileID string) error {
	query := `
	INSERT INTO sync_cursors (profile_id, last_pulled_at) VALUES (?, NULL)
	ON CONFLICT(profile_id) DO UPDATE SET last_pulled_at = NULL
	`
	if _, err := s.conn.ExecContext(ctx, query, profileID); err != nil {
		return fmt.Errorf("failed to clear sync cursor: %w", err)
	}
	return nil
}
