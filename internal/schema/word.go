package schema

import (
	"fmt"
	"time"
)

// WordRecord is one practiced word for one profile.
//
// The business key is the normalized word text. times_used and times_correct
// are cumulative counters (PolicyMax); mastery_level is derived server-side
// from the session log and is never a conflict winner.
type WordRecord struct {
	LocalID   string `json:"local_id"`
	RemoteID  string `json:"remote_id,omitempty"`
	ProfileID string `json:"profile_id"`

	Text            string     `json:"text"`
	TimesUsed       int64      `json:"times_used"`
	TimesCorrect    int64      `json:"times_correct"`
	LastPracticedAt *time.Time `json:"last_practiced_at,omitempty"`
	Favorite        bool       `json:"favorite"`
	MasteryLevel    int        `json:"mastery_level"`

	ClientUpdatedAt time.Time `json:"client_updated_at"`

	// Local bookkeeping, never serialized.
	Status  DirtyStatus `json:"-"`
	Changed []string    `json:"-"`
}

// GetLocalID implements Record.
func (w *WordRecord) GetLocalID() string { return w.LocalID }

// GetRemoteID implements Record.
func (w *WordRecord) GetRemoteID() string { return w.RemoteID }

// GetProfileID implements Record.
func (w *WordRecord) GetProfileID() string { return w.ProfileID }

// Key implements Record.
func (w *WordRecord) Key() string { return NormalizeKey(w.Text) }

// Validate checks required fields.
func (w *WordRecord) Validate() error {
	if w.LocalID == "" {
		return fmt.Errorf("local_id is required")
	}
	if w.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}
	if NormalizeKey(w.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if w.TimesUsed < 0 || w.TimesCorrect < 0 {
		return fmt.Errorf("counters must not be negative")
	}
	if w.ClientUpdatedAt.IsZero() {
		return fmt.Errorf("client_updated_at is required")
	}
	return nil
}
