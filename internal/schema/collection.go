package schema

import "strings"

// DirtyStatus marks a record's divergence from its last confirmed synced
// state.
type DirtyStatus string

const (
	// StatusSynced means the record matches the remote as of the last
	// confirmed round.
	StatusSynced DirtyStatus = "synced"

	// StatusCreated means the record was created locally and has never been
	// acknowledged by the remote. Drift healing must never delete it.
	StatusCreated DirtyStatus = "created"

	// StatusUpdated means the record exists remotely but carries local
	// changes pending push.
	StatusUpdated DirtyStatus = "updated"
)

// MergePolicy is the per-field conflict resolution rule applied when a
// locally-pending and a remote value both exist.
type MergePolicy int

const (
	// PolicyMax keeps the larger value. For cumulative counters that must
	// never regress.
	PolicyMax MergePolicy = iota

	// PolicyLastWriterWins keeps the value with the more recent client
	// timestamp; the remote wins ties.
	PolicyLastWriterWins

	// PolicyInsertOnly marks the record immutable after creation. A
	// conflicting business key on insert is an idempotent no-op.
	PolicyInsertOnly

	// PolicyServerComputed means the client-submitted value is stored but
	// never authoritative; the server recomputes it from the event log.
	// Excluded from conflict resolution entirely.
	PolicyServerComputed
)

// String returns the policy name used in logs.
func (p MergePolicy) String() string {
	switch p {
	case PolicyMax:
		return "max"
	case PolicyLastWriterWins:
		return "last_writer_wins"
	case PolicyInsertOnly:
		return "insert_only"
	case PolicyServerComputed:
		return "server_computed"
	default:
		return "unknown"
	}
}

// FieldSpec declares one mergeable field of a collection.
type FieldSpec struct {
	Name   string
	Policy MergePolicy
}

// Collection declares a synced entity kind: its name on the wire, whether
// records are immutable after creation, and the merge policy of each field.
type Collection struct {
	Name       string
	InsertOnly bool
	Fields     []FieldSpec
}

// FieldPolicy returns the declared policy for a field name.
// Undeclared fields default to last-writer-wins.
func (c Collection) FieldPolicy(name string) MergePolicy {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Policy
		}
	}
	return PolicyLastWriterWins
}

// Declared collections. The policy of a field is fixed here at
// schema-definition time.
var (
	Words = Collection{
		Name: "words",
		Fields: []FieldSpec{
			{Name: "times_used", Policy: PolicyMax},
			{Name: "times_correct", Policy: PolicyMax},
			{Name: "last_practiced_at", Policy: PolicyLastWriterWins},
			{Name: "favorite", Policy: PolicyLastWriterWins},
			{Name: "mastery_level", Policy: PolicyServerComputed},
		},
	}

	Sessions = Collection{
		Name:       "sessions",
		InsertOnly: true,
		Fields: []FieldSpec{
			{Name: "mode", Policy: PolicyInsertOnly},
			{Name: "words_seen", Policy: PolicyInsertOnly},
			{Name: "correct_count", Policy: PolicyInsertOnly},
			{Name: "started_at", Policy: PolicyInsertOnly},
			{Name: "duration_ms", Policy: PolicyInsertOnly},
		},
	}

	ModeSettings = Collection{
		Name: "mode_settings",
		Fields: []FieldSpec{
			{Name: "enabled", Policy: PolicyLastWriterWins},
			{Name: "difficulty", Policy: PolicyLastWriterWins},
		},
	}
)

// Collections lists every declared collection in dependency-free order.
var Collections = []Collection{Words, Sessions, ModeSettings}

// CollectionByName looks up a declared collection.
func CollectionByName(name string) (Collection, bool) {
	for _, c := range Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// NormalizeKey canonicalizes a text business key: trimmed and case-folded,
// so "Elephant " and "elephant" identify the same logical record.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Record is the envelope surface shared by all synced entities. The business
// key is unique per profile per collection; the local identifier is
// immutable once minted.
type Record interface {
	GetLocalID() string
	GetRemoteID() string
	GetProfileID() string
	Key() string
}
