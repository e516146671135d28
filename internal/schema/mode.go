package schema

import (
	"fmt"
	"time"
)

// ModeSettingRecord holds per-profile preferences for one practice mode.
// The business key is the mode name; all fields are last-writer-wins.
type ModeSettingRecord struct {
	LocalID   string `json:"local_id"`
	RemoteID  string `json:"remote_id,omitempty"`
	ProfileID string `json:"profile_id"`

	Mode       string `json:"mode"`
	Enabled    bool   `json:"enabled"`
	Difficulty int    `json:"difficulty"`

	ClientUpdatedAt time.Time `json:"client_updated_at"`

	Status  DirtyStatus `json:"-"`
	Changed []string    `json:"-"`
}

// GetLocalID implements Record.
func (m *ModeSettingRecord) GetLocalID() string { return m.LocalID }

// GetRemoteID implements Record.
func (m *ModeSettingRecord) GetRemoteID() string { return m.RemoteID }

// GetProfileID implements Record.
func (m *ModeSettingRecord) GetProfileID() string { return m.ProfileID }

// Key implements Record.
func (m *ModeSettingRecord) Key() string { return NormalizeKey(m.Mode) }

// Validate checks required fields.
func (m *ModeSettingRecord) Validate() error {
	if m.LocalID == "" {
		return fmt.Errorf("local_id is required")
	}
	if m.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}
	if NormalizeKey(m.Mode) == "" {
		return fmt.Errorf("mode is required")
	}
	if m.Difficulty < 0 || m.Difficulty > 4 {
		return fmt.Errorf("difficulty must be between 0 and 4 (got %d)", m.Difficulty)
	}
	if m.ClientUpdatedAt.IsZero() {
		return fmt.Errorf("client_updated_at is required")
	}
	return nil
}
