package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wordhoard/wordhoard/internal/schema"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return db
}

// A whole-second RFC3339Nano timestamp ("...05Z") sorts after a later
// fractional one ("...05.9Z") as text, so the winner must be decided on
// parsed times.
func TestModeSettingLastWriterWinsAcrossPrecision(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fractional := time.Date(2026, 3, 1, 0, 0, 5, 900_000_000, time.UTC)
	wholeSecond := time.Date(2026, 3, 1, 0, 0, 5, 0, time.UTC)

	first := &schema.ModeSettingRecord{
		ProfileID: "p1", Mode: "quiz", Enabled: true, Difficulty: 3,
		ClientUpdatedAt: fractional,
	}
	if err := db.UpsertModeSetting(ctx, first, 1); err != nil {
		t.Fatalf("first UpsertModeSetting failed: %v", err)
	}

	stale := &schema.ModeSettingRecord{
		ProfileID: "p1", Mode: "quiz", Enabled: false, Difficulty: 1,
		ClientUpdatedAt: wholeSecond,
	}
	if err := db.UpsertModeSetting(ctx, stale, 2); err != nil {
		t.Fatalf("stale UpsertModeSetting failed: %v", err)
	}

	changes, err := db.ChangesSince(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("ChangesSince failed: %v", err)
	}
	if len(changes.ModeSettings) != 1 {
		t.Fatalf("got %d mode settings, want 1", len(changes.ModeSettings))
	}
	got := changes.ModeSettings[0]
	if !got.Enabled || got.Difficulty != 3 {
		t.Errorf("stale write won: enabled=%v difficulty=%d, want enabled=true difficulty=3",
			got.Enabled, got.Difficulty)
	}

	newer := &schema.ModeSettingRecord{
		ProfileID: "p1", Mode: "quiz", Enabled: false, Difficulty: 2,
		ClientUpdatedAt: time.Date(2026, 3, 1, 0, 0, 6, 0, time.UTC),
	}
	if err := db.UpsertModeSetting(ctx, newer, 3); err != nil {
		t.Fatalf("newer UpsertModeSetting failed: %v", err)
	}

	changes, err = db.ChangesSince(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("ChangesSince failed: %v", err)
	}
	got = changes.ModeSettings[0]
	if got.Enabled || got.Difficulty != 2 {
		t.Errorf("strictly newer write lost: enabled=%v difficulty=%d, want enabled=false difficulty=2",
			got.Enabled, got.Difficulty)
	}
}
