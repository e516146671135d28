package store

import (
	"context"
	"fmt"

	"github.com/wordhoard/wordhoard/internal/schema"
)

// DirtyChangeset extracts every locally-dirty record for one profile, split
// into created and updated halves for the push request. This is the change
// collector: it reads through the same scanners as the query API, so records
// arrive with their changed-field sets intact.
func (s *Store) DirtyChangeset(ctx context.Context, profileID string) (*schema.PushRequest, error) {
	req := &schema.PushRequest{}

	words, err := s.ListWords(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for _, w := range words {
		switch w.Status {
		case schema.StatusCreated:
			req.Created.Words = append(req.Created.Words, w)
		case schema.StatusUpdated:
			req.Updated.Words = append(req.Updated.Words, w)
		}
	}

	sessions, err := s.ListSessions(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for _, rec := range sessions {
		// Sessions are insert-only; an "updated" session cannot exist.
		if rec.Status == schema.StatusCreated {
			req.Created.Sessions = append(req.Created.Sessions, rec)
		}
	}

	settings, err := s.ListModeSettings(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for _, rec := range settings {
		switch rec.Status {
		case schema.StatusCreated:
			req.Created.ModeSettings = append(req.Created.ModeSettings, rec)
		case schema.StatusUpdated:
			req.Updated.ModeSettings = append(req.Updated.ModeSettings, rec)
		}
	}

	return req, nil
}

// confirmRow identifies one pushed record plus the client timestamp it
// carried when the push was collected.
type confirmRow struct {
	localID   string
	updatedAt string
}

// ClearDirty marks exactly the records of an acknowledged push as synced.
// The update is guarded by the client timestamp captured at collection time:
// a record dirtied again while the push was in flight keeps its dirty status
// and changed-field set, so concurrent local writes are never silently
// confirmed. Every tracked setter bumps client_updated_at, which is what
// makes the guard sufficient.
func (s *Store) ClearDirty(ctx context.Context, req *schema.PushRequest) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin confirm transaction: %w", err)
	}
	defer tx.Rollback()

	clear := func(table string, rows []confirmRow) error {
		for _, row := range rows {
			query := fmt.Sprintf(
				"UPDATE %s SET dirty_status = 'synced', changed_fields = '[]' WHERE local_id = ? AND client_updated_at = ?", table)
			if _, err := tx.ExecContext(ctx, query, row.localID, row.updatedAt); err != nil {
				return fmt.Errorf("failed to clear dirty in %s: %w", table, err)
			}
		}
		return nil
	}

	var words, sessions, modes []confirmRow
	for _, cs := range []*schema.Changeset{&req.Created, &req.Updated} {
		for _, w := range cs.Words {
			words = append(words, confirmRow{w.LocalID, formatTime(w.ClientUpdatedAt)})
		}
		for _, rec := range cs.Sessions {
			sessions = append(sessions, confirmRow{rec.LocalID, formatTime(rec.ClientUpdatedAt)})
		}
		for _, rec := range cs.ModeSettings {
			modes = append(modes, confirmRow{rec.LocalID, formatTime(rec.ClientUpdatedAt)})
		}
	}

	if err := clear("words", words); err != nil {
		return err
	}
	if err := clear("sessions", sessions); err != nil {
		return err
	}
	if err := clear("mode_settings", modes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit confirm transaction: %w", err)
	}
	return nil
}

// DirtyCount returns the number of unpushed records for a profile.
func (s *Store) DirtyCount(ctx context.Context, profileID string) (int, error) {
	var total int
	for name, table := range collectionTables {
		var n int
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE profile_id = ? AND dirty_status != 'synced'", table)
		if err := s.conn.QueryRowContext(ctx, query, profileID).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count dirty %s: %w", name, err)
		}
		total += n
	}
	return total, nil
}
