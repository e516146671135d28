// Package merge applies per-field conflict resolution when a locally-pending
// and a remote value both exist.
//
// The rules are declared per collection in the schema package:
//
//   - max: keep the larger value; cumulative counters never regress
//   - last_writer_wins: keep the newer client timestamp, remote wins ties
//   - insert_only: records are immutable facts; nothing to resolve
//   - server_computed: the remote (event-log-derived) value always stands
//
// Each resolver takes the local record (nil when the reconciler planned a
// create) and the remote record, and returns the record to apply: final
// field values, the surviving changed-field set, and the resulting dirty
// status. A field where the local side wins stays in the changed set so the
// next push carries it.
package merge

import (
	"time"

	"github.com/wordhoard/wordhoard/internal/schema"
)

// maxInt64 resolves a cumulative counter. Reports whether the local value
// won and must remain pending.
func maxInt64(local, remote int64) (int64, bool) {
	if local > remote {
		return local, true
	}
	return remote, false
}

// localWriterWins reports whether the local client timestamp is strictly
// newer than the remote's. Ties go to the remote.
func localWriterWins(local, remote time.Time) bool {
	return local.After(remote)
}

// status derives the post-merge dirty status. A record that still carries
// pending fields is "updated" (it exists remotely now, whatever it was
// before); otherwise it is synced.
func status(changed []string) schema.DirtyStatus {
	if len(changed) > 0 {
		return schema.StatusUpdated
	}
	return schema.StatusSynced
}

// Word resolves a word record.
func Word(local, remote *schema.WordRecord) *schema.WordRecord {
	out := *remote
	out.RemoteID = remote.RemoteID

	if local == nil {
		out.LocalID = remote.RemoteID
		out.Status = schema.StatusSynced
		out.Changed = nil
		return &out
	}

	out.LocalID = local.LocalID

	// A record still in status "created" has never been pushed, so its whole
	// payload is pending, not just the tracked changed set.
	pending := make(map[string]bool, len(local.Changed))
	if local.Status == schema.StatusCreated {
		for _, f := range schema.Words.Fields {
			pending[f.Name] = true
		}
	}
	for _, f := range local.Changed {
		pending[f] = true
	}

	var changed []string
	localWins := localWriterWins(local.ClientUpdatedAt, remote.ClientUpdatedAt)

	if pending["times_used"] {
		v, won := maxInt64(local.TimesUsed, remote.TimesUsed)
		out.TimesUsed = v
		if won {
			changed = append(changed, "times_used")
		}
	}
	if pending["times_correct"] {
		v, won := maxInt64(local.TimesCorrect, remote.TimesCorrect)
		out.TimesCorrect = v
		if won {
			changed = append(changed, "times_correct")
		}
	}
	if pending["last_practiced_at"] && localWins {
		out.LastPracticedAt = local.LastPracticedAt
		changed = append(changed, "last_practiced_at")
	}
	if pending["favorite"] && localWins {
		out.Favorite = local.Favorite
		changed = append(changed, "favorite")
	}
	// mastery_level is server-computed: the remote derived value stands even
	// if the client submitted something else, and it never stays pending.

	if len(changed) > 0 && localWins {
		out.ClientUpdatedAt = local.ClientUpdatedAt
	}

	out.Changed = changed
	out.Status = status(changed)
	return &out
}

// Session resolves a session record. Sessions are insert-only facts, so a
// remote match is purely an acknowledgement of the same event.
func Session(local, remote *schema.SessionRecord) *schema.SessionRecord {
	out := *remote
	if local == nil {
		out.LocalID = remote.RemoteID
	} else {
		out.LocalID = local.LocalID
	}
	out.Status = schema.StatusSynced
	out.Changed = nil
	return &out
}

// ModeSetting resolves a mode-setting record. All fields are
// last-writer-wins with the remote winning ties.
func ModeSetting(local, remote *schema.ModeSettingRecord) *schema.ModeSettingRecord {
	out := *remote

	if local == nil {
		out.LocalID = remote.RemoteID
		out.Status = schema.StatusSynced
		out.Changed = nil
		return &out
	}

	out.LocalID = local.LocalID

	localPending := len(local.Changed) > 0 || local.Status == schema.StatusCreated
	if localPending && localWriterWins(local.ClientUpdatedAt, remote.ClientUpdatedAt) {
		out.Enabled = local.Enabled
		out.Difficulty = local.Difficulty
		out.ClientUpdatedAt = local.ClientUpdatedAt
		out.Changed = append([]string(nil), local.Changed...)
		if len(out.Changed) == 0 {
			out.Changed = []string{"enabled", "difficulty"}
		}
		out.Status = schema.StatusUpdated
		return &out
	}

	out.Changed = nil
	out.Status = schema.StatusSynced
	return &out
}
