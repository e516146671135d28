package sync

import (
	"context"
	"fmt"

	"github.com/wordhoard/wordhoard/internal/schema"
)

// OrphanReport summarizes one orphan reconciliation pass, per collection.
type OrphanReport struct {
	ProfileID string
	DryRun    bool

	// Kept counts records present in the remote key set.
	Kept map[string]int

	// Protected counts records absent remotely but still in status
	// "created": pending uploads that deletion must never touch.
	Protected map[string]int

	// Deleted counts records removed (or, in dry-run, that would be).
	Deleted map[string]int
}

// ReconcileOrphans deletes local records that no longer exist remotely.
//
// Records in status "created" are never deleted, whatever the remote says:
// they are unpushed work, and the remote's silence about them is expected.
// With confirm false this is a dry run returning counts without mutation;
// a second, confirmed call performs the deletions.
func (o *Orchestrator) ReconcileOrphans(ctx context.Context, profileID string, confirm bool) (*OrphanReport, error) {
	keys, err := o.remote.FetchKeySets(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("key-set fetch failed: %w", err)
	}

	report := &OrphanReport{
		ProfileID: profileID,
		DryRun:    !confirm,
		Kept:      make(map[string]int),
		Protected: make(map[string]int),
		Deleted:   make(map[string]int),
	}

	for _, c := range schema.Collections {
		records, err := o.listRecords(ctx, c.Name, profileID)
		if err != nil {
			return nil, err
		}

		remoteKeys := make(map[string]bool)
		for _, k := range keys.ForCollection(c.Name) {
			remoteKeys[schema.NormalizeKey(k)] = true
		}

		var doomed []string
		for _, rec := range records {
			switch {
			case remoteKeys[rec.Key()]:
				report.Kept[c.Name]++
			case dirtyStatusOf(rec) == schema.StatusCreated:
				o.logger.Printf("orphan pass: protecting unpushed %s record %s (key %q)",
					c.Name, rec.GetLocalID(), rec.Key())
				report.Protected[c.Name]++
			default:
				doomed = append(doomed, rec.GetLocalID())
				report.Deleted[c.Name]++
			}
		}

		if confirm && len(doomed) > 0 {
			if err := o.store.DeleteByLocalIDs(ctx, c.Name, profileID, doomed); err != nil {
				return nil, err
			}
			o.logger.Printf("orphan pass: deleted %d %s records for %s", len(doomed), c.Name, profileID)
		}
	}

	return report, nil
}

// listRecords returns one collection's records as envelope values.
func (o *Orchestrator) listRecords(ctx context.Context, collection, profileID string) ([]schema.Record, error) {
	var out []schema.Record
	switch collection {
	case schema.Words.Name:
		words, err := o.store.ListWords(ctx, profileID)
		if err != nil {
			return nil, err
		}
		for _, w := range words {
			out = append(out, w)
		}
	case schema.Sessions.Name:
		sessions, err := o.store.ListSessions(ctx, profileID)
		if err != nil {
			return nil, err
		}
		for _, rec := range sessions {
			out = append(out, rec)
		}
	case schema.ModeSettings.Name:
		settings, err := o.store.ListModeSettings(ctx, profileID)
		if err != nil {
			return nil, err
		}
		for _, rec := range settings {
			out = append(out, rec)
		}
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return out, nil
}

// dirtyStatusOf reads the dirty status off a concrete envelope.
func dirtyStatusOf(rec schema.Record) schema.DirtyStatus {
	switch r := rec.(type) {
	case *schema.WordRecord:
		return r.Status
	case *schema.SessionRecord:
		return r.Status
	case *schema.ModeSettingRecord:
		return r.Status
	default:
		return schema.StatusSynced
	}
}
