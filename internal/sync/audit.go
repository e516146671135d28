package sync

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/wordhoard/wordhoard/internal/remote"
	"github.com/wordhoard/wordhoard/internal/schema"
	"github.com/wordhoard/wordhoard/internal/store"
)

// Health classifies a profile's post-round sync state.
type Health string

const (
	// HealthHealthy means local and remote counts match within tolerance
	// and nothing is pending.
	HealthHealthy Health = "healthy"

	// HealthPendingLocal means dirty records remain to be pushed.
	HealthPendingLocal Health = "pending-local"

	// HealthInconsistent means a count delta exceeds tolerance after a
	// round: drift that incremental sync should have prevented.
	HealthInconsistent Health = "inconsistent"

	// HealthOffline means the remote could not be reached.
	HealthOffline Health = "offline"

	// HealthError means the audit itself failed.
	HealthError Health = "error"
)

// DefaultTolerances returns the per-collection count tolerances: a small
// bound for low-cardinality collections, a larger one for the high-volume
// session log, absorbing benign same-round timing skew. Heuristic policy,
// not correctness logic; override via NewAuditor.
func DefaultTolerances() map[string]int {
	return map[string]int{
		schema.Words.Name:        2,
		schema.Sessions.Name:     5,
		schema.ModeSettings.Name: 2,
	}
}

// AuditReport is the drift auditor's diagnostic output. The auditor never
// repairs anything; at most it recommends a deep repair.
type AuditReport struct {
	ProfileID string
	Health    Health

	// Dirty is the number of unpushed local records.
	Dirty int

	// Deltas holds local-minus-remote count differences per collection.
	Deltas map[string]int

	// RecommendDeepRepair is set when drift exceeds tolerance. Deep repair
	// is never auto-triggered; the admin surface asks for confirmation.
	RecommendDeepRepair bool

	// Detail carries the failure description for offline/error states.
	Detail string
}

// Auditor classifies post-round health from local/remote count comparison.
type Auditor struct {
	store      *store.Store
	remote     remote.Client
	tolerances map[string]int
	logger     *log.Logger
}

// NewAuditor creates an Auditor. Nil tolerances or logger fall back to
// defaults.
func NewAuditor(st *store.Store, rc remote.Client, tolerances map[string]int, logger *log.Logger) *Auditor {
	if tolerances == nil {
		tolerances = DefaultTolerances()
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[audit] ", log.LstdFlags)
	}
	return &Auditor{store: st, remote: rc, tolerances: tolerances, logger: logger}
}

// Audit compares local counts against the remote key sets and classifies
// the profile's health. It performs no mutation of any kind.
func (a *Auditor) Audit(ctx context.Context, profileID string) *AuditReport {
	report := &AuditReport{ProfileID: profileID, Deltas: make(map[string]int)}

	dirty, err := a.store.DirtyCount(ctx, profileID)
	if err != nil {
		report.Health = HealthError
		report.Detail = err.Error()
		return report
	}
	report.Dirty = dirty

	keys, err := a.remote.FetchKeySets(ctx, profileID)
	if err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			report.Health = HealthOffline
		} else {
			report.Health = HealthError
		}
		report.Detail = err.Error()
		return report
	}

	counts, err := a.store.CollectionCounts(ctx, profileID)
	if err != nil {
		report.Health = HealthError
		report.Detail = err.Error()
		return report
	}

	exceeded := false
	for _, c := range schema.Collections {
		delta := counts[c.Name] - len(keys.ForCollection(c.Name))
		report.Deltas[c.Name] = delta
		if abs(delta) > a.tolerances[c.Name] {
			exceeded = true
		}
	}

	switch {
	case exceeded:
		report.Health = HealthInconsistent
		report.RecommendDeepRepair = true
		report.Detail = ErrCursorDesync.Error()
		a.logger.Printf("WARNING: %v for profile %s: deltas=%v (deep repair recommended)",
			ErrCursorDesync, profileID, report.Deltas)
	case dirty > 0:
		report.Health = HealthPendingLocal
	default:
		report.Health = HealthHealthy
	}

	return report
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
