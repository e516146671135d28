package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// trackedUpdate performs the tracked write shared by all collection setters:
// the field values, the dirty status bump, and the changed-field union are
// committed together or not at all.
//
// A record already in status "created" stays "created" (it has never existed
// remotely, so it must still be pushed as an insert); anything else becomes
// "updated".
func (s *Store) trackedUpdate(ctx context.Context, table, profileID, localID string, sets []string, args []interface{}, changed []string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var storedChanged string
	selectQ := fmt.Sprintf("SELECT changed_fields FROM %s WHERE profile_id = ? AND local_id = ?", table)
	if err := tx.QueryRowContext(ctx, selectQ, profileID, localID).Scan(&storedChanged); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("failed to read %s record: %w", table, err)
	}

	mergedChanged, err := mergeChanged(storedChanged, changed)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	UPDATE %s SET %s,
		client_updated_at = ?,
		dirty_status = CASE WHEN dirty_status = 'created' THEN 'created' ELSE 'updated' END,
		changed_fields = ?
	WHERE profile_id = ? AND local_id = ?`,
		table, strings.Join(sets, ", "))

	args = append(args, formatTime(time.Now()), mergedChanged, profileID, localID)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s record: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracked update: %w", err)
	}
	return nil
}

// encodeChanged renders a changed-field set as its JSON column value.
func encodeChanged(changed []string) (string, error) {
	if changed == nil {
		return "[]", nil
	}
	out, err := json.Marshal(changed)
	if err != nil {
		return "", fmt.Errorf("failed to marshal changed_fields: %w", err)
	}
	return string(out), nil
}
