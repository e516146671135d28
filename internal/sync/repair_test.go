package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wordhoard/wordhoard/internal/remote"
	"github.com/wordhoard/wordhoard/internal/schema"
)

func TestDeepRepairAbortsWhenPushFails(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pending := &schema.WordRecord{ProfileID: "p1", Text: "unsaved"}
	if err := st.CreateWord(ctx, pending); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}

	rc := &fakeRemote{pushErr: fmt.Errorf("%w: 503", remote.ErrUnavailable)}
	orch := newTestOrchestrator(t, st, rc)

	_, err := orch.DeepRepair(ctx, "p1", nil, false)
	if !errors.Is(err, ErrUnpushedChanges) {
		t.Fatalf("err = %v, want ErrUnpushedChanges", err)
	}

	// Nothing was wiped.
	words, lerr := st.ListWords(ctx, "p1")
	if lerr != nil {
		t.Fatalf("ListWords failed: %v", lerr)
	}
	if len(words) != 1 {
		t.Errorf("got %d words after aborted repair, want the pending record intact", len(words))
	}
}

func TestDeepRepairRebuildsFromRemote(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Local junk that no longer exists remotely.
	junk := &schema.WordRecord{ProfileID: "p1", Text: "junk"}
	if err := st.CreateWord(ctx, junk); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}
	if err := st.ClearDirty(ctx, &schema.PushRequest{
		Created: schema.Changeset{Words: []*schema.WordRecord{junk}},
	}); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}

	// A stale cursor that would normally hide the authoritative records.
	if err := st.SetCursor(ctx, "p1", time.Now().UTC()); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	serverTime := time.Now().UTC()
	rc := &fakeRemote{pullResp: &schema.PullResponse{
		Records: schema.Changeset{
			Words: []*schema.WordRecord{remoteWord("r1", "cat", 2, serverTime.Add(-time.Hour))},
		},
		ServerTimestamp: serverTime,
	}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.DeepRepair(ctx, "p1", nil, false)
	if err != nil {
		t.Fatalf("DeepRepair failed: %v", err)
	}
	if !report.Wiped {
		t.Error("report.Wiped = false, want true")
	}
	if report.Materialized != 1 {
		t.Errorf("materialized = %d, want 1", report.Materialized)
	}

	words, err := st.ListWords(ctx, "p1")
	if err != nil {
		t.Fatalf("ListWords failed: %v", err)
	}
	if len(words) != 1 || words[0].Key() != "cat" {
		t.Errorf("post-repair words = %v, want only the remote record", words)
	}

	cursor, err := st.Cursor(ctx, "p1")
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if cursor == nil || !cursor.Equal(serverTime) {
		t.Errorf("cursor = %v, want fresh server timestamp", cursor)
	}
}

func TestDeepRepairPushesPendingFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pending := &schema.WordRecord{ProfileID: "p1", Text: "keep-me", TimesUsed: 3}
	if err := st.CreateWord(ctx, pending); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}

	serverTime := time.Now().UTC()
	rc := &fakeRemote{pullResp: &schema.PullResponse{
		Records: schema.Changeset{
			Words: []*schema.WordRecord{remoteWord("r1", "keep-me", 3, serverTime.Add(-time.Hour))},
		},
		ServerTimestamp: serverTime,
	}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.DeepRepair(ctx, "p1", nil, false)
	if err != nil {
		t.Fatalf("DeepRepair failed: %v", err)
	}
	if report.PushedFirst != 1 {
		t.Errorf("pushed-first = %d, want 1", report.PushedFirst)
	}
	if len(rc.pushes) != 1 {
		t.Fatalf("remote saw %d pushes, want 1 before the wipe", len(rc.pushes))
	}
	if len(rc.pushes[0].Created.Words) != 1 || rc.pushes[0].Created.Words[0].TimesUsed != 3 {
		t.Errorf("push payload = %+v, want the pending word", rc.pushes[0])
	}
}

func TestDeepRepairScopedToCollections(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	word := &schema.WordRecord{ProfileID: "p1", Text: "junk"}
	if err := st.CreateWord(ctx, word); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}
	if err := st.CreateSession(ctx, &schema.SessionRecord{
		ProfileID:       "p1",
		ClientSessionID: "sess-1",
		Mode:            "quiz",
		WordsSeen:       1,
		CorrectCount:    1,
		StartedAt:       time.Now(),
	}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	serverTime := time.Now().UTC()
	rc := &fakeRemote{pullResp: &schema.PullResponse{ServerTimestamp: serverTime}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.DeepRepair(ctx, "p1", []string{schema.Words.Name}, false)
	if err != nil {
		t.Fatalf("DeepRepair failed: %v", err)
	}
	if len(report.Collections) != 1 || report.Collections[0] != schema.Words.Name {
		t.Errorf("collections = %v, want only words", report.Collections)
	}

	words, err := st.ListWords(ctx, "p1")
	if err != nil {
		t.Fatalf("ListWords failed: %v", err)
	}
	if len(words) != 0 {
		t.Errorf("words = %v, want wiped", words)
	}

	sessions, err := st.ListSessions(ctx, "p1")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want untouched", len(sessions))
	}
}
