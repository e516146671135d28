package schema

import "time"

// Changeset groups records per collection. It is both the pull payload shape
// and one half of a push request.
type Changeset struct {
	Words        []*WordRecord        `json:"words,omitempty"`
	Sessions     []*SessionRecord     `json:"sessions,omitempty"`
	ModeSettings []*ModeSettingRecord `json:"mode_settings,omitempty"`
}

// Len returns the total number of records across collections.
func (c *Changeset) Len() int {
	return len(c.Words) + len(c.Sessions) + len(c.ModeSettings)
}

// Empty reports whether the changeset holds no records.
func (c *Changeset) Empty() bool { return c.Len() == 0 }

// PullResponse is the remote's answer to a pull: every record newer than the
// requested cursor, the server clock at serve time, and the most recent
// tenant reset if one happened.
type PullResponse struct {
	Records         Changeset  `json:"records"`
	ServerTimestamp time.Time  `json:"server_timestamp"`
	TenantResetAt   *time.Time `json:"tenant_reset_at,omitempty"`
}

// PushRequest carries locally-dirty records to the remote. Every record
// inside carries its own profile id; the server authorizes per record, so a
// single push may span profiles.
type PushRequest struct {
	Created Changeset `json:"created"`
	Updated Changeset `json:"updated"`
}

// Len returns the total number of records in the request.
func (r *PushRequest) Len() int { return r.Created.Len() + r.Updated.Len() }

// PushResponse acknowledges a push with per-collection accepted counts.
type PushResponse struct {
	Accepted        map[string]int `json:"accepted"`
	ServerTimestamp time.Time      `json:"server_timestamp"`
}

// KeySets is the authoritative remote business-key sets for one profile,
// used only by the orphan reconciler.
type KeySets struct {
	Words        []string `json:"words"`
	Sessions     []string `json:"sessions"`
	ModeSettings []string `json:"mode_settings"`
}

// ForCollection returns the key set for a collection name.
func (k *KeySets) ForCollection(name string) []string {
	switch name {
	case Words.Name:
		return k.Words
	case Sessions.Name:
		return k.Sessions
	case ModeSettings.Name:
		return k.ModeSettings
	default:
		return nil
	}
}
