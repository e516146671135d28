package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/wordhoard/wordhoard/internal/schema"
)

// RepairReport summarizes a deep repair.
type RepairReport struct {
	ProfileID    string
	Collections  []string
	PushedFirst  int
	Wiped        bool
	Materialized int
	Orphans      *OrphanReport
	Duration     time.Duration
}

// DeepRepair runs a full, cursor-bypassing resync that treats the remote as
// authoritative for the requested collections. Used when incremental sync
// cannot converge: a local wipe out of band, or a remote correction the
// cursor has already passed.
//
// The protocol is push-first: pending local dirty records are pushed and
// must be accepted before anything is wiped. That guard is the only safety
// net against silently losing unpushed work. Then the requested collections
// are wiped, the cursor is forced to null, and everything the remote returns
// is applied; collections not being force-refreshed go through normal
// reconciliation and, when runOrphans is set, an immediate confirmed orphan
// pass.
//
// Irreversible for any local-only state the push could not deliver, which is
// why a failed push aborts with ErrUnpushedChanges.
func (o *Orchestrator) DeepRepair(ctx context.Context, profileID string, collections []string, runOrphans bool) (*RepairReport, error) {
	start := o.now()
	if len(collections) == 0 {
		for _, c := range schema.Collections {
			collections = append(collections, c.Name)
		}
	}
	report := &RepairReport{ProfileID: profileID, Collections: collections}

	// Push-first guard.
	pending, err := o.store.DirtyChangeset(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if pending.Len() > 0 {
		if _, err := o.remote.Push(ctx, pending); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnpushedChanges, err)
		}
		if err := o.store.ClearDirty(ctx, pending); err != nil {
			return nil, fmt.Errorf("confirm failed: %w", err)
		}
		report.PushedFirst = pending.Len()
		o.logger.Printf("deep repair: pushed %d pending records for %s before wipe",
			pending.Len(), profileID)
	}

	if err := o.store.WipeCollections(ctx, profileID, collections); err != nil {
		return nil, fmt.Errorf("wipe failed: %w", err)
	}
	report.Wiped = true

	if err := o.store.ClearCursor(ctx, profileID); err != nil {
		return nil, err
	}

	// Full pull: nil cursor means everything.
	pulled, err := o.remote.Pull(ctx, profileID, nil)
	if err != nil {
		return nil, fmt.Errorf("repair pull failed: %w", err)
	}

	// The wiped collections are empty locally, so reconciliation degenerates
	// to direct materialization for them; collections left in place merge
	// normally.
	resolved, err := o.resolve(ctx, profileID, &pulled.Records)
	if err != nil {
		return nil, err
	}
	if err := o.store.ApplyChangeset(ctx, resolved); err != nil {
		return nil, fmt.Errorf("repair apply failed: %w", err)
	}
	report.Materialized = resolved.Len()

	if err := o.store.SetCursor(ctx, profileID, pulled.ServerTimestamp); err != nil {
		return nil, err
	}

	if runOrphans {
		orphans, err := o.ReconcileOrphans(ctx, profileID, true)
		if err != nil {
			return nil, fmt.Errorf("post-repair orphan pass failed: %w", err)
		}
		report.Orphans = orphans
	}

	report.Duration = o.now().Sub(start)
	o.logger.Printf("deep repair complete for %s: materialized=%d in %v",
		profileID, report.Materialized, report.Duration.Round(time.Millisecond))
	return report, nil
}
