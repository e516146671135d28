package sync

import (
	"context"
	"testing"

	"github.com/wordhoard/wordhoard/internal/schema"
)

func TestReconcileOrphansDryRunDeletesNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	orphan := &schema.WordRecord{ProfileID: "p1", Text: "gone"}
	if err := st.CreateWord(ctx, orphan); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}
	if err := st.ClearDirty(ctx, &schema.PushRequest{
		Created: schema.Changeset{Words: []*schema.WordRecord{orphan}},
	}); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}

	rc := &fakeRemote{keys: &schema.KeySets{}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.ReconcileOrphans(ctx, "p1", false)
	if err != nil {
		t.Fatalf("ReconcileOrphans failed: %v", err)
	}
	if !report.DryRun {
		t.Error("report.DryRun = false, want true")
	}
	if report.Deleted[schema.Words.Name] != 1 {
		t.Errorf("would-delete count = %d, want 1", report.Deleted[schema.Words.Name])
	}

	// Nothing actually removed.
	words, err := st.ListWords(ctx, "p1")
	if err != nil {
		t.Fatalf("ListWords failed: %v", err)
	}
	if len(words) != 1 {
		t.Errorf("got %d words after dry run, want 1", len(words))
	}
}

func TestReconcileOrphansConfirmedDeletes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	kept := &schema.WordRecord{ProfileID: "p1", Text: "cat"}
	orphan := &schema.WordRecord{ProfileID: "p1", Text: "gone"}
	for _, w := range []*schema.WordRecord{kept, orphan} {
		if err := st.CreateWord(ctx, w); err != nil {
			t.Fatalf("CreateWord failed: %v", err)
		}
	}
	if err := st.ClearDirty(ctx, &schema.PushRequest{
		Created: schema.Changeset{Words: []*schema.WordRecord{kept, orphan}},
	}); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}

	rc := &fakeRemote{keys: &schema.KeySets{Words: []string{"cat"}}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.ReconcileOrphans(ctx, "p1", true)
	if err != nil {
		t.Fatalf("ReconcileOrphans failed: %v", err)
	}
	if report.Kept[schema.Words.Name] != 1 || report.Deleted[schema.Words.Name] != 1 {
		t.Errorf("kept/deleted = %d/%d, want 1/1",
			report.Kept[schema.Words.Name], report.Deleted[schema.Words.Name])
	}

	words, err := st.ListWords(ctx, "p1")
	if err != nil {
		t.Fatalf("ListWords failed: %v", err)
	}
	if len(words) != 1 || words[0].Key() != "cat" {
		t.Errorf("surviving words = %v, want only cat", words)
	}
}

func TestReconcileOrphansProtectsUnpushedCreations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Created locally, never pushed: absent from the remote key set by
	// definition, and must survive a confirmed pass.
	unpushed := &schema.WordRecord{ProfileID: "p1", Text: "draft"}
	if err := st.CreateWord(ctx, unpushed); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}

	rc := &fakeRemote{keys: &schema.KeySets{}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.ReconcileOrphans(ctx, "p1", true)
	if err != nil {
		t.Fatalf("ReconcileOrphans failed: %v", err)
	}
	if report.Protected[schema.Words.Name] != 1 {
		t.Errorf("protected = %d, want 1", report.Protected[schema.Words.Name])
	}
	if report.Deleted[schema.Words.Name] != 0 {
		t.Errorf("deleted = %d, want 0", report.Deleted[schema.Words.Name])
	}

	if _, err := st.GetWord(ctx, "p1", unpushed.LocalID); err != nil {
		t.Errorf("unpushed record gone after orphan pass: %v", err)
	}
}
