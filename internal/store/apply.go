package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/wordhoard/wordhoard/internal/schema"
)

// ApplyChangeset writes a resolved changeset in one atomic transaction: all
// records land or none do. This is the only entry point for remote state.
//
// The caller (the sync orchestrator) has already reconciled identities and
// run the merge policy engine, so each record arrives with its final local
// identifier, field values, dirty status, and changed-field set. Upserts key
// on the business key, which preserves existing local identifiers and makes
// last-processed-wins the natural outcome for ambiguous remote pairs.
func (s *Store) ApplyChangeset(ctx context.Context, cs *schema.Changeset) error {
	if cs.Empty() {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin apply transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range cs.Words {
		if err := upsertWordTx(ctx, tx, w); err != nil {
			return err
		}
	}
	for _, rec := range cs.Sessions {
		if err := upsertSessionTx(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, rec := range cs.ModeSettings {
		if err := upsertModeSettingTx(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit apply transaction: %w", err)
	}
	return nil
}

var collectionTables = map[string]string{
	schema.Words.Name:        "words",
	schema.Sessions.Name:     "sessions",
	schema.ModeSettings.Name: "mode_settings",
}

// WipeProfile deletes every record for a profile across all collections.
// Used for tenant resets and as part of deep repair.
func (s *Store) WipeProfile(ctx context.Context, profileID string) error {
	return s.WipeCollections(ctx, profileID, nil)
}

// WipeCollections deletes a profile's records for the named collections.
// A nil or empty list wipes all collections.
func (s *Store) WipeCollections(ctx context.Context, profileID string, collections []string) error {
	if len(collections) == 0 {
		for _, c := range schema.Collections {
			collections = append(collections, c.Name)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin wipe transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range collections {
		table, ok := collectionTables[name]
		if !ok {
			return fmt.Errorf("unknown collection %q", name)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE profile_id = ?", table), profileID); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe transaction: %w", err)
	}
	return nil
}

// DeleteByLocalIDs removes specific records from one collection. Used by the
// orphan reconciler after its keep/protect/delete partitioning.
func (s *Store) DeleteByLocalIDs(ctx context.Context, collection, profileID string, localIDs []string) error {
	if len(localIDs) == 0 {
		return nil
	}

	table, ok := collectionTables[collection]
	if !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(localIDs)), ",")
	args := make([]interface{}, 0, len(localIDs)+1)
	args = append(args, profileID)
	for _, id := range localIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE profile_id = ? AND local_id IN (%s)", table, placeholders)
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	return nil
}

// CollectionCounts returns the per-collection record counts for a profile.
// The drift auditor compares these against remote key-set sizes.
func (s *Store) CollectionCounts(ctx context.Context, profileID string) (map[string]int, error) {
	counts := make(map[string]int, len(collectionTables))
	for name, table := range collectionTables {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE profile_id = ?", table)
		if err := s.conn.QueryRowContext(ctx, query, profileID).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}
