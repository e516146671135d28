package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wordhoard/wordhoard/internal/schema"
)

// ModeSettingChanges is the tracked-setter input for mode settings.
type ModeSettingChanges struct {
	Enabled    *bool
	Difficulty *int
}

// CreateModeSetting inserts a locally-created mode setting with dirty status
// "created".
func (s *Store) CreateModeSetting(ctx context.Context, rec *schema.ModeSettingRecord) error {
	if rec.LocalID == "" {
		rec.LocalID = uuid.NewString()
	}
	if rec.ClientUpdatedAt.IsZero() {
		rec.ClientUpdatedAt = time.Now()
	}
	// The mode name doubles as the business key column, so it is stored
	// normalized.
	rec.Mode = schema.NormalizeKey(rec.Mode)
	rec.Status = schema.StatusCreated

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid mode setting: %w", err)
	}

	query := `
	INSERT INTO mode_settings (
		local_id, remote_id, profile_id, mode, enabled, difficulty,
		client_updated_at, dirty_status, changed_fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, 'created', '[]')
	`

	_, err := s.conn.ExecContext(ctx, query,
		rec.LocalID,
		nullIfEmpty(rec.RemoteID),
		rec.ProfileID,
		rec.Mode,
		boolToInt(rec.Enabled),
		rec.Difficulty,
		formatTime(rec.ClientUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create mode setting %q: %w", rec.Mode, err)
	}

	return nil
}

// UpdateModeSetting applies tracked changes to a mode setting.
func (s *Store) UpdateModeSetting(ctx context.Context, profileID, localID string, ch ModeSettingChanges) error {
	var sets []string
	var args []interface{}
	var changed []string

	if ch.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*ch.Enabled))
		changed = append(changed, "enabled")
	}
	if ch.Difficulty != nil {
		sets = append(sets, "difficulty = ?")
		args = append(args, *ch.Difficulty)
		changed = append(changed, "difficulty")
	}

	if len(sets) == 0 {
		return nil
	}

	return s.trackedUpdate(ctx, "mode_settings", profileID, localID, sets, args, changed)
}

// GetModeSettingByKey retrieves one mode setting by mode name.
// Returns sql.ErrNoRows if absent.
func (s *Store) GetModeSettingByKey(ctx context.Context, profileID, mode string) (*schema.ModeSettingRecord, error) {
	row := s.conn.QueryRowContext(ctx, modeSelect+" WHERE profile_id = ? AND mode = ?",
		profileID, schema.NormalizeKey(mode))
	rec, err := scanModeSetting(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mode setting: %w", err)
	}
	return rec, nil
}

// ListModeSettings returns all mode settings for a profile.
func (s *Store) ListModeSettings(ctx context.Context, profileID string) ([]*schema.ModeSettingRecord, error) {
	rows, err := s.conn.QueryContext(ctx, modeSelect+" WHERE profile_id = ? ORDER BY mode", profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mode settings: %w", err)
	}
	defer rows.Close()

	var settings []*schema.ModeSettingRecord
	for rows.Next() {
		rec, err := scanModeSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mode setting: %w", err)
		}
		settings = append(settings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mode settings: %w", err)
	}
	return settings, nil
}

const modeSelect = `
	SELECT local_id, remote_id, profile_id, mode, enabled, difficulty,
	       client_updated_at, dirty_status, changed_fields
	FROM mode_settings`

func scanModeSetting(sc rowScanner) (*schema.ModeSettingRecord, error) {
	var rec schema.ModeSettingRecord
	var remoteID sql.NullString
	var enabled int
	var updatedAt, status, changedJSON string

	err := sc.Scan(
		&rec.LocalID,
		&remoteID,
		&rec.ProfileID,
		&rec.Mode,
		&enabled,
		&rec.Difficulty,
		&updatedAt,
		&status,
		&changedJSON,
	)
	if err != nil {
		return nil, err
	}

	rec.RemoteID = remoteID.String
	rec.Enabled = enabled != 0
	rec.ClientUpdatedAt = parseTime(updatedAt)
	rec.Status = schema.DirtyStatus(status)
	rec.Changed = decodeChanged(changedJSON)
	return &rec, nil
}

// upsertModeSettingTx writes a reconciled mode setting inside an apply
// transaction, preserving the existing local identifier on key conflict.
func upsertModeSettingTx(ctx context.Context, tx *sql.Tx, rec *schema.ModeSettingRecord) error {
	changedJSON, err := encodeChanged(rec.Changed)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO mode_settings (
		local_id, remote_id, profile_id, mode, enabled, difficulty,
		client_updated_at, dirty_status, changed_fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id, mode) DO UPDATE SET
		remote_id = excluded.remote_id,
		enabled = excluded.enabled,
		difficulty = excluded.difficulty,
		client_updated_at = excluded.client_updated_at,
		dirty_status = excluded.dirty_status,
		changed_fields = excluded.changed_fields
	`

	_, err = tx.ExecContext(ctx, query,
		rec.LocalID,
		nullIfEmpty(rec.RemoteID),
		rec.ProfileID,
		schema.NormalizeKey(rec.Mode),
		boolToInt(rec.Enabled),
		rec.Difficulty,
		formatTime(rec.ClientUpdatedAt),
		string(rec.Status),
		changedJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to apply mode setting %q: %w", rec.Mode, err)
	}
	return nil
}
