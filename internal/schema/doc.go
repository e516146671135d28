// Package schema defines the synced record envelopes and the per-collection
// merge policy declarations for the wordhoard sync engine.
//
// Every synced entity is an envelope carrying:
//
//   - an immutable, device-minted local identifier
//   - an optional remote identifier (populated only by reconciliation)
//   - a profile identifier (the tenant partition)
//   - a business key derived from domain fields (word text, client session
//     id, mode name), unique per profile per collection
//   - a dirty status and the set of locally-changed fields
//
// Records are mutated only through the store's tracked setters; the structs
// here are plain data. The same structs serve as the wire format for pull
// and push, so the JSON tags double as the protocol schema. Dirty status and
// the changed-field set are local bookkeeping and never cross the wire.
//
// Collection declarations fix each field's merge policy at definition time.
// Changing a policy later requires an explicit server-side backfill using
// original event timestamps, not the migration time, or incremental pulls
// would skip the backfilled rows.
package schema
