package schema

import (
	"fmt"
	"time"
)

// SessionRecord is one completed practice session: an immutable event fact.
//
// The business key is the client-generated session id, which makes repeated
// pushes of the same session idempotent.
type SessionRecord struct {
	LocalID   string `json:"local_id"`
	RemoteID  string `json:"remote_id,omitempty"`
	ProfileID string `json:"profile_id"`

	ClientSessionID string    `json:"client_session_id"`
	Mode            string    `json:"mode"`
	WordsSeen       int       `json:"words_seen"`
	CorrectCount    int       `json:"correct_count"`
	StartedAt       time.Time `json:"started_at"`
	DurationMS      int64     `json:"duration_ms"`

	ClientUpdatedAt time.Time `json:"client_updated_at"`

	Status  DirtyStatus `json:"-"`
	Changed []string    `json:"-"`
}

// GetLocalID implements Record.
func (s *SessionRecord) GetLocalID() string { return s.LocalID }

// GetRemoteID implements Record.
func (s *SessionRecord) GetRemoteID() string { return s.RemoteID }

// GetProfileID implements Record.
func (s *SessionRecord) GetProfileID() string { return s.ProfileID }

// Key implements Record.
func (s *SessionRecord) Key() string { return NormalizeKey(s.ClientSessionID) }

// Validate checks required fields.
func (s *SessionRecord) Validate() error {
	if s.LocalID == "" {
		return fmt.Errorf("local_id is required")
	}
	if s.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}
	if s.ClientSessionID == "" {
		return fmt.Errorf("client_session_id is required")
	}
	if s.Mode == "" {
		return fmt.Errorf("mode is required")
	}
	if s.WordsSeen < 0 || s.CorrectCount < 0 || s.DurationMS < 0 {
		return fmt.Errorf("counts must not be negative")
	}
	if s.CorrectCount > s.WordsSeen {
		return fmt.Errorf("correct_count %d exceeds words_seen %d", s.CorrectCount, s.WordsSeen)
	}
	if s.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	return nil
}
