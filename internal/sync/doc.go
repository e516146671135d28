// Package sync drives reconciliation rounds between the local store and the
// shared backend.
//
// One round per profile runs, in order: debounce check, pull since the
// cursor, tenant-reset wipe if one is newer than the cursor, business-key
// reconciliation, atomic apply (only then does the cursor advance), dirty
// collection, push, and an all-or-nothing confirmation that clears dirty
// status on exactly the submitted records.
//
// Failure semantics:
//
//   - a pull failure aborts the round without touching the cursor, so the
//     next round retries safely
//   - a push failure leaves records dirty; the declared merge policies make
//     a wholesale retry idempotent
//   - transient errors retry only via the next debounced round; there is no
//     in-round retry
//
// The debounce check is a rate limiter, not a mutex: a second caller for the
// same profile no-ops with ErrDebounced rather than queueing. Rounds for
// different profiles may run concurrently; every query and every remote
// authorization is profile-scoped.
//
// The package also houses the post-round surfaces that consume rounds'
// leftovers: the drift auditor (diagnostic only), the orphan reconciler
// (dry-run first, protects unpushed records), and the deep-repair
// coordinator (cursor-bypassing resync with a push-first guard).
package sync
