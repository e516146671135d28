package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/wordhoard/wordhoard/internal/remote"
	"github.com/wordhoard/wordhoard/internal/schema"
	"github.com/wordhoard/wordhoard/internal/store"
)

func newTestAuditor(t *testing.T, st *store.Store, rc remote.Client) *Auditor {
	t.Helper()
	return NewAuditor(st, rc, nil, log.New(os.Stderr, "[test] ", 0))
}

func TestAuditHealthyWhenCountsMatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := &schema.WordRecord{ProfileID: "p1", Text: "cat"}
	if err := st.CreateWord(ctx, w); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}
	if err := st.ClearDirty(ctx, &schema.PushRequest{
		Created: schema.Changeset{Words: []*schema.WordRecord{w}},
	}); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}

	rc := &fakeRemote{keys: &schema.KeySets{Words: []string{"cat"}}}
	report := newTestAuditor(t, st, rc).Audit(ctx, "p1")

	if report.Health != HealthHealthy {
		t.Errorf("health = %q, want healthy", report.Health)
	}
	if report.RecommendDeepRepair {
		t.Error("deep repair recommended for a healthy profile")
	}
}

func TestAuditPendingLocal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.CreateWord(ctx, &schema.WordRecord{ProfileID: "p1", Text: "cat"}); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}

	rc := &fakeRemote{keys: &schema.KeySets{Words: []string{"cat"}}}
	report := newTestAuditor(t, st, rc).Audit(ctx, "p1")

	if report.Health != HealthPendingLocal {
		t.Errorf("health = %q, want pending-local", report.Health)
	}
	if report.Dirty != 1 {
		t.Errorf("dirty = %d, want 1", report.Dirty)
	}
}

func TestAuditInconsistentBeyondTolerance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Default word tolerance is 2; a delta of 3 must trip it.
	for _, text := range []string{"a", "b", "c"} {
		w := &schema.WordRecord{ProfileID: "p1", Text: text}
		if err := st.CreateWord(ctx, w); err != nil {
			t.Fatalf("CreateWord failed: %v", err)
		}
		if err := st.ClearDirty(ctx, &schema.PushRequest{
			Created: schema.Changeset{Words: []*schema.WordRecord{w}},
		}); err != nil {
			t.Fatalf("ClearDirty failed: %v", err)
		}
	}

	rc := &fakeRemote{keys: &schema.KeySets{}}
	report := newTestAuditor(t, st, rc).Audit(ctx, "p1")

	if report.Health != HealthInconsistent {
		t.Errorf("health = %q, want inconsistent", report.Health)
	}
	if !report.RecommendDeepRepair {
		t.Error("deep repair not recommended despite drift beyond tolerance")
	}
	if report.Deltas[schema.Words.Name] != 3 {
		t.Errorf("word delta = %d, want +3", report.Deltas[schema.Words.Name])
	}
}

func TestAuditWithinToleranceStaysHealthy(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := &schema.WordRecord{ProfileID: "p1", Text: "extra"}
	if err := st.CreateWord(ctx, w); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}
	if err := st.ClearDirty(ctx, &schema.PushRequest{
		Created: schema.Changeset{Words: []*schema.WordRecord{w}},
	}); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}

	// Delta of 1 is inside the default tolerance of 2.
	rc := &fakeRemote{keys: &schema.KeySets{}}
	report := newTestAuditor(t, st, rc).Audit(ctx, "p1")

	if report.Health != HealthHealthy {
		t.Errorf("health = %q, want healthy within tolerance", report.Health)
	}
}

func TestAuditOffline(t *testing.T) {
	st := newTestStore(t)

	rc := &fakeRemote{keysErr: fmt.Errorf("%w: no route", remote.ErrUnavailable)}
	report := newTestAuditor(t, st, rc).Audit(context.Background(), "p1")

	if report.Health != HealthOffline {
		t.Errorf("health = %q, want offline", report.Health)
	}
}

func TestAuditError(t *testing.T) {
	st := newTestStore(t)

	rc := &fakeRemote{keysErr: fmt.Errorf("key sets exploded")}
	report := newTestAuditor(t, st, rc).Audit(context.Background(), "p1")

	if report.Health != HealthError {
		t.Errorf("health = %q, want error", report.Health)
	}
	if report.Detail == "" {
		t.Error("detail is empty for an errored audit")
	}
}
