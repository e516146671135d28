package merge

import (
	"testing"
	"time"

	"github.com/wordhoard/wordhoard/internal/schema"
)

var (
	older = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
)

func TestWordCreateMaterializesSynced(t *testing.T) {
	remote := &schema.WordRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Text:            "cat",
		TimesUsed:       4,
		MasteryLevel:    2,
		ClientUpdatedAt: older,
	}

	got := Word(nil, remote)
	if got.LocalID != "r1" {
		t.Errorf("local id = %q, want the remote id adopted", got.LocalID)
	}
	if got.Status != schema.StatusSynced {
		t.Errorf("status = %q, want synced", got.Status)
	}
	if len(got.Changed) != 0 {
		t.Errorf("changed = %v, want empty", got.Changed)
	}
}

func TestWordCountersNeverRegress(t *testing.T) {
	local := &schema.WordRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		Text:            "cat",
		TimesUsed:       10,
		TimesCorrect:    2,
		ClientUpdatedAt: older,
		Status:          schema.StatusUpdated,
		Changed:         []string{"times_used", "times_correct"},
	}
	remote := &schema.WordRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Text:            "cat",
		TimesUsed:       7,
		TimesCorrect:    5,
		ClientUpdatedAt: newer,
	}

	got := Word(local, remote)
	if got.TimesUsed != 10 {
		t.Errorf("times_used = %d, want local max 10", got.TimesUsed)
	}
	if got.TimesCorrect != 5 {
		t.Errorf("times_correct = %d, want remote max 5", got.TimesCorrect)
	}

	// The locally-won counter must stay pending for the next push.
	if got.Status != schema.StatusUpdated {
		t.Errorf("status = %q, want updated", got.Status)
	}
	if len(got.Changed) != 1 || got.Changed[0] != "times_used" {
		t.Errorf("changed = %v, want only the locally-won [times_used]", got.Changed)
	}
}

func TestWordLastWriterWinsTieGoesRemote(t *testing.T) {
	ts := older
	local := &schema.WordRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		Text:            "cat",
		Favorite:        true,
		ClientUpdatedAt: ts,
		Changed:         []string{"favorite"},
	}
	remote := &schema.WordRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Text:            "cat",
		Favorite:        false,
		ClientUpdatedAt: ts,
	}

	got := Word(local, remote)
	if got.Favorite {
		t.Error("favorite = true, want remote to win the timestamp tie")
	}
	if got.Status != schema.StatusSynced {
		t.Errorf("status = %q, want synced after remote win", got.Status)
	}
}

func TestWordLastWriterWinsLocalNewer(t *testing.T) {
	practiced := newer
	local := &schema.WordRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		Text:            "cat",
		Favorite:        true,
		LastPracticedAt: &practiced,
		ClientUpdatedAt: newer,
		Changed:         []string{"favorite", "last_practiced_at"},
	}
	remote := &schema.WordRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Text:            "cat",
		Favorite:        false,
		ClientUpdatedAt: older,
	}

	got := Word(local, remote)
	if !got.Favorite {
		t.Error("favorite = false, want newer local write kept")
	}
	if got.LastPracticedAt == nil || !got.LastPracticedAt.Equal(practiced) {
		t.Errorf("last_practiced_at = %v, want local %v", got.LastPracticedAt, practiced)
	}
	if got.Status != schema.StatusUpdated {
		t.Errorf("status = %q, want updated so the win is pushed back", got.Status)
	}
}

func TestWordMasteryAlwaysRemote(t *testing.T) {
	local := &schema.WordRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		Text:            "cat",
		MasteryLevel:    5,
		ClientUpdatedAt: newer,
		Changed:         []string{"mastery_level"},
	}
	remote := &schema.WordRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Text:            "cat",
		MasteryLevel:    1,
		ClientUpdatedAt: older,
	}

	got := Word(local, remote)
	if got.MasteryLevel != 1 {
		t.Errorf("mastery = %d, want server-computed 1 even though local is newer", got.MasteryLevel)
	}
	for _, f := range got.Changed {
		if f == "mastery_level" {
			t.Error("mastery_level must never stay pending")
		}
	}
}

// A record that was created offline has an empty changed set, but its whole
// payload is unpushed local state; a pulled remote twin must not wipe it.
func TestWordCreatedRecordPayloadIsPending(t *testing.T) {
	local := &schema.WordRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		Text:            "cat",
		TimesUsed:       1,
		TimesCorrect:    1,
		ClientUpdatedAt: newer,
		Status:          schema.StatusCreated,
	}
	remote := &schema.WordRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Text:            "cat",
		TimesUsed:       0,
		TimesCorrect:    0,
		ClientUpdatedAt: older,
	}

	got := Word(local, remote)
	if got.TimesUsed != 1 || got.TimesCorrect != 1 {
		t.Errorf("counters = %d/%d, want offline practice 1/1 preserved",
			got.TimesUsed, got.TimesCorrect)
	}
	if got.LocalID != "l1" {
		t.Errorf("local id = %q, want l1 kept", got.LocalID)
	}
	if got.RemoteID != "r1" {
		t.Errorf("remote id = %q, want r1 adopted", got.RemoteID)
	}
	if got.Status != schema.StatusUpdated {
		t.Errorf("status = %q, want updated so the counters push back", got.Status)
	}
}

func TestSessionMatchIsAcknowledgement(t *testing.T) {
	local := &schema.SessionRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		ClientSessionID: "sess-1",
		WordsSeen:       10,
		Status:          schema.StatusCreated,
	}
	remote := &schema.SessionRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		ClientSessionID: "sess-1",
		WordsSeen:       10,
	}

	got := Session(local, remote)
	if got.LocalID != "l1" {
		t.Errorf("local id = %q, want l1", got.LocalID)
	}
	if got.Status != schema.StatusSynced {
		t.Errorf("status = %q, want synced", got.Status)
	}
}

func TestModeSettingLocalPendingNewerWins(t *testing.T) {
	local := &schema.ModeSettingRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		Mode:            "quiz",
		Enabled:         false,
		Difficulty:      3,
		ClientUpdatedAt: newer,
		Changed:         []string{"difficulty"},
	}
	remote := &schema.ModeSettingRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Mode:            "quiz",
		Enabled:         true,
		Difficulty:      1,
		ClientUpdatedAt: older,
	}

	got := ModeSetting(local, remote)
	if got.Difficulty != 3 {
		t.Errorf("difficulty = %d, want local 3", got.Difficulty)
	}
	if got.Enabled {
		t.Error("enabled = true, want local false (whole record follows the winner)")
	}
	if got.Status != schema.StatusUpdated {
		t.Errorf("status = %q, want updated", got.Status)
	}
}

func TestModeSettingNoLocalPendingRemoteWins(t *testing.T) {
	local := &schema.ModeSettingRecord{
		LocalID:         "l1",
		ProfileID:       "p1",
		Mode:            "quiz",
		Difficulty:      3,
		ClientUpdatedAt: newer,
		Status:          schema.StatusSynced,
	}
	remote := &schema.ModeSettingRecord{
		RemoteID:        "r1",
		ProfileID:       "p1",
		Mode:            "quiz",
		Difficulty:      1,
		ClientUpdatedAt: older,
	}

	got := ModeSetting(local, remote)
	if got.Difficulty != 1 {
		t.Errorf("difficulty = %d, want remote 1 when nothing is locally pending", got.Difficulty)
	}
	if got.Status != schema.StatusSynced {
		t.Errorf("status = %q, want synced", got.Status)
	}
}
