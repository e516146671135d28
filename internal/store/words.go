package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wordhoard/wordhoard/internal/schema"
)

// WordChanges is the tracked-setter input for word mutations. Nil fields are
// left untouched; non-nil fields are written and recorded in the record's
// changed-field set.
type WordChanges struct {
	TimesUsed       *int64
	TimesCorrect    *int64
	LastPracticedAt *time.Time
	Favorite        *bool
	MasteryLevel    *int
}

// CreateWord inserts a locally-created word with dirty status "created".
// A local identifier is minted if the record doesn't carry one.
func (s *Store) CreateWord(ctx context.Context, w *schema.WordRecord) error {
	if w.LocalID == "" {
		w.LocalID = uuid.NewString()
	}
	if w.ClientUpdatedAt.IsZero() {
		w.ClientUpdatedAt = time.Now()
	}
	w.Status = schema.StatusCreated

	if err := w.Validate(); err != nil {
		return fmt.Errorf("invalid word: %w", err)
	}

	query := `
	INSERT INTO words (
		local_id, remote_id, profile_id, text, text_key,
		times_used, times_correct, last_practiced_at, favorite, mastery_level,
		client_updated_at, dirty_status, changed_fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'created', '[]')
	`

	_, err := s.conn.ExecContext(ctx, query,
		w.LocalID,
		nullIfEmpty(w.RemoteID),
		w.ProfileID,
		w.Text,
		w.Key(),
		w.TimesUsed,
		w.TimesCorrect,
		timeToNullString(w.LastPracticedAt),
		boolToInt(w.Favorite),
		w.MasteryLevel,
		formatTime(w.ClientUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create word %q: %w", w.Text, err)
	}

	return nil
}

// UpdateWord applies tracked changes to a word. The data write, the dirty
// status bump, and the changed-field union happen in one transaction, so a
// record can never hold unsynced data while looking synced.
func (s *Store) UpdateWord(ctx context.Context, profileID, localID string, ch WordChanges) error {
	var sets []string
	var args []interface{}
	var changed []string

	if ch.TimesUsed != nil {
		sets = append(sets, "times_used = ?")
		args = append(args, *ch.TimesUsed)
		changed = append(changed, "times_used")
	}
	if ch.TimesCorrect != nil {
		sets = append(sets, "times_correct = ?")
		args = append(args, *ch.TimesCorrect)
		changed = append(changed, "times_correct")
	}
	if ch.LastPracticedAt != nil {
		sets = append(sets, "last_practiced_at = ?")
		args = append(args, timeToNullString(ch.LastPracticedAt))
		changed = append(changed, "last_practiced_at")
	}
	if ch.Favorite != nil {
		sets = append(sets, "favorite = ?")
		args = append(args, boolToInt(*ch.Favorite))
		changed = append(changed, "favorite")
	}
	if ch.MasteryLevel != nil {
		sets = append(sets, "mastery_level = ?")
		args = append(args, *ch.MasteryLevel)
		changed = append(changed, "mastery_level")
	}

	if len(sets) == 0 {
		return nil
	}

	return s.trackedUpdate(ctx, "words", profileID, localID, sets, args, changed)
}

// GetWord retrieves one word by local identifier.
// Returns sql.ErrNoRows if absent.
func (s *Store) GetWord(ctx context.Context, profileID, localID string) (*schema.WordRecord, error) {
	row := s.conn.QueryRowContext(ctx, wordSelect+" WHERE profile_id = ? AND local_id = ?", profileID, localID)
	return scanWordRow(row)
}

// GetWordByKey retrieves one word by normalized business key.
// Returns sql.ErrNoRows if absent.
func (s *Store) GetWordByKey(ctx context.Context, profileID, key string) (*schema.WordRecord, error) {
	row := s.conn.QueryRowContext(ctx, wordSelect+" WHERE profile_id = ? AND text_key = ?",
		profileID, schema.NormalizeKey(key))
	return scanWordRow(row)
}

// ListWords returns all words for a profile ordered by business key.
func (s *Store) ListWords(ctx context.Context, profileID string) ([]*schema.WordRecord, error) {
	rows, err := s.conn.QueryContext(ctx, wordSelect+" WHERE profile_id = ? ORDER BY text_key", profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list words: %w", err)
	}
	defer rows.Close()

	var words []*schema.WordRecord
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating words: %w", err)
	}
	return words, nil
}

const wordSelect = `
	SELECT local_id, remote_id, profile_id, text,
	       times_used, times_correct, last_practiced_at, favorite, mastery_level,
	       client_updated_at, dirty_status, changed_fields
	FROM words`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWord(sc rowScanner) (*schema.WordRecord, error) {
	var w schema.WordRecord
	var remoteID, lastPracticed sql.NullString
	var favorite int
	var updatedAt, status, changedJSON string

	err := sc.Scan(
		&w.LocalID,
		&remoteID,
		&w.ProfileID,
		&w.Text,
		&w.TimesUsed,
		&w.TimesCorrect,
		&lastPracticed,
		&favorite,
		&w.MasteryLevel,
		&updatedAt,
		&status,
		&changedJSON,
	)
	if err != nil {
		return nil, err
	}

	w.RemoteID = remoteID.String
	w.LastPracticedAt = nullStringToTime(lastPracticed)
	w.Favorite = favorite != 0
	w.ClientUpdatedAt = parseTime(updatedAt)
	w.Status = schema.DirtyStatus(status)
	w.Changed = decodeChanged(changedJSON)
	return &w, nil
}

func scanWordRow(row *sql.Row) (*schema.WordRecord, error) {
	w, err := scanWord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan word: %w", err)
	}
	return w, nil
}

// upsertWordTx writes a reconciled word inside an apply transaction. Conflict
// on the business key preserves the existing local identifier, which is how
// update actions and last-wins ambiguity resolution both land.
func upsertWordTx(ctx context.Context, tx *sql.Tx, w *schema.WordRecord) error {
	changedJSON, err := encodeChanged(w.Changed)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO words (
		local_id, remote_id, profile_id, text, text_key,
		times_used, times_correct, last_practiced_at, favorite, mastery_level,
		client_updated_at, dirty_status, changed_fields
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile_id, text_key) DO UPDATE SET
		remote_id = excluded.remote_id,
		text = excluded.text,
		times_used = excluded.times_used,
		times_correct = excluded.times_correct,
		last_practiced_at = excluded.last_practiced_at,
		favorite = excluded.favorite,
		mastery_level = excluded.mastery_level,
		client_updated_at = excluded.client_updated_at,
		dirty_status = excluded.dirty_status,
		changed_fields = excluded.changed_fields
	`

	_, err = tx.ExecContext(ctx, query,
		w.LocalID,
		nullIfEmpty(w.RemoteID),
		w.ProfileID,
		w.Text,
		w.Key(),
		w.TimesUsed,
		w.TimesCorrect,
		timeToNullString(w.LastPracticedAt),
		boolToInt(w.Favorite),
		w.MasteryLevel,
		formatTime(w.ClientUpdatedAt),
		string(w.Status),
		changedJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to apply word %q: %w", w.Text, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
