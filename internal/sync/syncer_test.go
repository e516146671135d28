package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wordhoard/wordhoard/internal/remote"
	"github.com/wordhoard/wordhoard/internal/schema"
	"github.com/wordhoard/wordhoard/internal/store"
)

// fakeRemote is an in-memory Client with scriptable responses.
type fakeRemote struct {
	pullResp *schema.PullResponse
	pullErr  error

	pushErr error
	pushes  []*schema.PushRequest

	keys    *schema.KeySets
	keysErr error
}

func (f *fakeRemote) Pull(ctx context.Context, profileID string, since *time.Time) (*schema.PullResponse, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullResp != nil {
		return f.pullResp, nil
	}
	return &schema.PullResponse{ServerTimestamp: time.Now().UTC()}, nil
}

func (f *fakeRemote) Push(ctx context.Context, req *schema.PushRequest) (*schema.PushResponse, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushes = append(f.pushes, req)
	return &schema.PushResponse{
		Accepted:        map[string]int{"total": req.Len()},
		ServerTimestamp: time.Now().UTC(),
	}, nil
}

func (f *fakeRemote) FetchKeySets(ctx context.Context, profileID string) (*schema.KeySets, error) {
	if f.keysErr != nil {
		return nil, f.keysErr
	}
	if f.keys != nil {
		return f.keys, nil
	}
	return &schema.KeySets{}, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return st
}

func newTestOrchestrator(t *testing.T, st *store.Store, rc remote.Client) *Orchestrator {
	t.Helper()
	return New(st, rc, &Config{
		MinInterval: 0,
		Logger:      log.New(os.Stderr, "[test] ", 0),
	})
}

func remoteWord(remoteID, text string, timesUsed int64, ts time.Time) *schema.WordRecord {
	return &schema.WordRecord{
		LocalID:         remoteID,
		RemoteID:        remoteID,
		ProfileID:       "p1",
		Text:            text,
		TimesUsed:       timesUsed,
		ClientUpdatedAt: ts,
	}
}

func TestSyncProfileDebounced(t *testing.T) {
	st := newTestStore(t)
	orch := New(st, &fakeRemote{}, &Config{MinInterval: time.Hour})

	if _, err := orch.SyncProfile(context.Background(), "p1"); err != nil {
		t.Fatalf("first round failed: %v", err)
	}
	if _, err := orch.SyncProfile(context.Background(), "p1"); !errors.Is(err, ErrDebounced) {
		t.Errorf("second round err = %v, want ErrDebounced", err)
	}

	// A different profile is not debounced by the first.
	if _, err := orch.SyncProfile(context.Background(), "p2"); err != nil {
		t.Errorf("other profile round failed: %v", err)
	}
}

func TestPullFailureLeavesCursorUntouched(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cursor := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := st.SetCursor(ctx, "p1", cursor); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}

	rc := &fakeRemote{pullErr: fmt.Errorf("%w: connection refused", remote.ErrUnavailable)}
	orch := newTestOrchestrator(t, st, rc)

	if _, err := orch.SyncProfile(ctx, "p1"); err == nil {
		t.Fatal("round succeeded despite pull failure")
	}

	got, err := st.Cursor(ctx, "p1")
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if got == nil || !got.Equal(cursor) {
		t.Errorf("cursor = %v, want untouched %v", got, cursor)
	}
}

func TestRoundAppliesPullAndAdvancesCursor(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	serverTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rc := &fakeRemote{pullResp: &schema.PullResponse{
		Records: schema.Changeset{
			Words: []*schema.WordRecord{remoteWord("r1", "cat", 4, serverTime.Add(-time.Hour))},
		},
		ServerTimestamp: serverTime,
	}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.SyncProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("round failed: %v", err)
	}
	if report.Pulled != 1 || report.Applied != 1 {
		t.Errorf("pulled/applied = %d/%d, want 1/1", report.Pulled, report.Applied)
	}

	got, err := st.GetWordByKey(ctx, "p1", "cat")
	if err != nil {
		t.Fatalf("GetWordByKey failed: %v", err)
	}
	if got.TimesUsed != 4 || got.Status != schema.StatusSynced {
		t.Errorf("materialized word = %+v, want times_used=4 synced", got)
	}

	cursor, err := st.Cursor(ctx, "p1")
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if cursor == nil || !cursor.Equal(serverTime) {
		t.Errorf("cursor = %v, want server timestamp %v", cursor, serverTime)
	}
}

func TestTenantResetWipesLocalBeforeApply(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	stale := &schema.WordRecord{ProfileID: "p1", Text: "stale"}
	if err := st.CreateWord(ctx, stale); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}
	if err := st.ClearDirty(ctx, &schema.PushRequest{
		Created: schema.Changeset{Words: []*schema.WordRecord{stale}},
	}); err != nil {
		t.Fatalf("ClearDirty failed: %v", err)
	}

	serverTime := time.Now().UTC()
	resetAt := serverTime.Add(-time.Minute)
	rc := &fakeRemote{pullResp: &schema.PullResponse{
		Records: schema.Changeset{
			Words: []*schema.WordRecord{remoteWord("r1", "fresh", 1, resetAt)},
		},
		ServerTimestamp: serverTime,
		TenantResetAt:   &resetAt,
	}}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.SyncProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("round failed: %v", err)
	}
	if !report.TenantReset {
		t.Error("report.TenantReset = false, want true")
	}

	words, err := st.ListWords(ctx, "p1")
	if err != nil {
		t.Fatalf("ListWords failed: %v", err)
	}
	if len(words) != 1 || words[0].Key() != "fresh" {
		t.Errorf("post-reset words = %v, want only the fresh pull", words)
	}
}

func TestPushClearsDirty(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := &schema.WordRecord{ProfileID: "p1", Text: "cat"}
	if err := st.CreateWord(ctx, w); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}

	rc := &fakeRemote{}
	orch := newTestOrchestrator(t, st, rc)

	report, err := orch.SyncProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("round failed: %v", err)
	}
	if report.Pushed != 1 {
		t.Errorf("pushed = %d, want 1", report.Pushed)
	}
	if len(rc.pushes) != 1 {
		t.Fatalf("remote saw %d pushes, want 1", len(rc.pushes))
	}

	n, err := st.DirtyCount(ctx, "p1")
	if err != nil {
		t.Fatalf("DirtyCount failed: %v", err)
	}
	if n != 0 {
		t.Errorf("dirty count after confirmed push = %d, want 0", n)
	}
}

func TestPushFailureKeepsRecordsDirty(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := &schema.WordRecord{ProfileID: "p1", Text: "cat"}
	if err := st.CreateWord(ctx, w); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}

	serverTime := time.Now().UTC()
	rc := &fakeRemote{
		pullResp: &schema.PullResponse{ServerTimestamp: serverTime},
		pushErr:  fmt.Errorf("%w: 502", remote.ErrUnavailable),
	}
	orch := newTestOrchestrator(t, st, rc)

	if _, err := orch.SyncProfile(ctx, "p1"); err == nil {
		t.Fatal("round succeeded despite push failure")
	}

	// The pull half of the round still landed.
	cursor, err := st.Cursor(ctx, "p1")
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if cursor == nil || !cursor.Equal(serverTime) {
		t.Errorf("cursor = %v, want advanced to %v despite push failure", cursor, serverTime)
	}

	n, err := st.DirtyCount(ctx, "p1")
	if err != nil {
		t.Fatalf("DirtyCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("dirty count = %d, want the record still pending", n)
	}
}

// Offline creation on one device converging with remote state from another:
// the pulled twin must not erase unpushed local practice, and the surviving
// counters must push back out.
func TestRoundMergesRemoteIntoOfflineCreated(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := &schema.WordRecord{ProfileID: "p1", Text: "cat", TimesUsed: 1, TimesCorrect: 1}
	if err := st.CreateWord(ctx, w); err != nil {
		t.Fatalf("CreateWord failed: %v", err)
	}

	serverTime := time.Now().UTC()
	rc := &fakeRemote{pullResp: &schema.PullResponse{
		Records: schema.Changeset{
			Words: []*schema.WordRecord{remoteWord("r1", "cat", 0, serverTime.Add(-time.Hour))},
		},
		ServerTimestamp: serverTime,
	}}
	orch := newTestOrchestrator(t, st, rc)

	if _, err := orch.SyncProfile(ctx, "p1"); err != nil {
		t.Fatalf("round failed: %v", err)
	}

	words, err := st.ListWords(ctx, "p1")
	if err != nil {
		t.Fatalf("ListWords failed: %v", err)
	}
	if len(words) != 1 {
		t.Fatalf("got %d words, want 1 (no duplicate materialized)", len(words))
	}
	got := words[0]
	if got.LocalID != w.LocalID {
		t.Errorf("local id = %q, want original %q", got.LocalID, w.LocalID)
	}
	if got.RemoteID != "r1" {
		t.Errorf("remote id = %q, want adopted r1", got.RemoteID)
	}
	if got.TimesUsed != 1 {
		t.Errorf("times_used = %d, want offline practice preserved", got.TimesUsed)
	}

	// The winning counter was pushed back in the same round.
	if len(rc.pushes) != 1 {
		t.Fatalf("remote saw %d pushes, want 1", len(rc.pushes))
	}
	pushed := rc.pushes[0]
	if pushed.Updated.Len() != 1 || len(pushed.Updated.Words) != 1 {
		t.Fatalf("push = %+v, want one updated word", pushed)
	}
	if pushed.Updated.Words[0].TimesUsed != 1 {
		t.Errorf("pushed times_used = %d, want 1", pushed.Updated.Words[0].TimesUsed)
	}
}
