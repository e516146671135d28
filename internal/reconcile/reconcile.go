// Package reconcile matches incoming remote records to local records by
// business key instead of storage identity.
//
// Devices mint identifiers independently, so the same logical record (the
// word "elephant", one practice session) usually carries a different id on
// every device. Matching by normalized business key is what prevents the
// engine from materializing duplicates on pull. The reconciler never imports
// a remote identifier over an existing local one; the local identifier is
// immutable for the life of the record.
package reconcile

import (
	"log"
	"os"

	"github.com/wordhoard/wordhoard/internal/schema"
)

// Match pairs one remote record with its resolution target.
//
// For an update, Local is the existing record whose identifier (and nothing
// else about its identity) survives. For a create, Local is the zero value
// and the remote identifier becomes the new local identifier.
type Match[R schema.Record] struct {
	Remote R
	Local  R
	Create bool
}

// Plan matches remote records against the local collection.
//
// Two remote records resolving to the same local business key is a
// reconciliation ambiguity: both candidates are logged and the
// last-processed record wins. The returned slice holds one match per
// distinct business key, in first-seen order.
func Plan[R schema.Record](locals, remotes []R, logger *log.Logger) []Match[R] {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}

	byKey := make(map[string]R, len(locals))
	for _, l := range locals {
		byKey[l.Key()] = l
	}

	order := make([]string, 0, len(remotes))
	matched := make(map[string]Match[R], len(remotes))

	for _, r := range remotes {
		key := r.Key()

		if prev, dup := matched[key]; dup {
			logger.Printf("WARNING: ambiguity on key %q: remote %s collides with remote %s (last wins)",
				key, r.GetRemoteID(), prev.Remote.GetRemoteID())
		} else {
			order = append(order, key)
		}

		if local, ok := byKey[key]; ok {
			matched[key] = Match[R]{Remote: r, Local: local}
		} else {
			matched[key] = Match[R]{Remote: r, Create: true}
		}
	}

	out := make([]Match[R], 0, len(order))
	for _, key := range order {
		out = append(out, matched[key])
	}
	return out
}
