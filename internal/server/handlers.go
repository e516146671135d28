package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wordhoard/wordhoard/internal/schema"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePull serves incremental changes. A missing since parameter means a
// full pull of everything the profile owns.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if !authorized(r, profileID) {
		http.Error(w, "profile not permitted for this token", http.StatusForbidden)
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = t.UnixNano()
	}

	// Stamp the timestamp before querying. A push committing while the
	// query runs then stays newer than the client's next cursor and is
	// re-delivered instead of falling into a permanent gap.
	serverTime := s.now().UTC()

	records, err := s.db.ChangesSince(r.Context(), profileID, since)
	if err != nil {
		s.config.Logger.Printf("ERROR: pull for %s failed: %v", profileID, err)
		http.Error(w, "pull failed", http.StatusInternalServerError)
		return
	}

	resetAt, err := s.db.ResetAt(r.Context(), profileID)
	if err != nil {
		s.config.Logger.Printf("ERROR: reset lookup for %s failed: %v", profileID, err)
		http.Error(w, "pull failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, &schema.PullResponse{
		Records:         *records,
		ServerTimestamp: serverTime,
		TenantResetAt:   resetAt,
	})
}

// handlePush applies a batch of client changes. Authorization is per record:
// one record owned by a profile the token cannot touch fails the whole batch
// before anything is written.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req schema.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid push payload", http.StatusBadRequest)
		return
	}

	for _, cs := range []*schema.Changeset{&req.Created, &req.Updated} {
		for _, rec := range cs.Words {
			if err := rec.Validate(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !authorized(r, rec.ProfileID) {
				http.Error(w, "record profile not permitted for this token", http.StatusForbidden)
				return
			}
		}
		for _, rec := range cs.Sessions {
			if err := rec.Validate(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !authorized(r, rec.ProfileID) {
				http.Error(w, "record profile not permitted for this token", http.StatusForbidden)
				return
			}
		}
		for _, rec := range cs.ModeSettings {
			if err := rec.Validate(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !authorized(r, rec.ProfileID) {
				http.Error(w, "record profile not permitted for this token", http.StatusForbidden)
				return
			}
		}
	}

	now := s.now().UTC()
	accepted := map[string]int{}

	for _, cs := range []*schema.Changeset{&req.Created, &req.Updated} {
		for _, rec := range cs.Words {
			if err := s.db.UpsertWord(r.Context(), rec, now.UnixNano()); err != nil {
				s.config.Logger.Printf("ERROR: word push failed: %v", err)
				http.Error(w, "push failed", http.StatusInternalServerError)
				return
			}
			accepted[schema.Words.Name]++
		}
		for _, rec := range cs.Sessions {
			if err := s.db.InsertSession(r.Context(), rec, now.UnixNano()); err != nil {
				s.config.Logger.Printf("ERROR: session push failed: %v", err)
				http.Error(w, "push failed", http.StatusInternalServerError)
				return
			}
			accepted[schema.Sessions.Name]++
		}
		for _, rec := range cs.ModeSettings {
			if err := s.db.UpsertModeSetting(r.Context(), rec, now.UnixNano()); err != nil {
				s.config.Logger.Printf("ERROR: mode setting push failed: %v", err)
				http.Error(w, "push failed", http.StatusInternalServerError)
				return
			}
			accepted[schema.ModeSettings.Name]++
		}
	}

	writeJSON(w, http.StatusOK, &schema.PushResponse{
		Accepted:        accepted,
		ServerTimestamp: now,
	})
}

func (s *Server) handleKeySets(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if !authorized(r, profileID) {
		http.Error(w, "profile not permitted for this token", http.StatusForbidden)
		return
	}

	keys, err := s.db.KeySets(r.Context(), profileID)
	if err != nil {
		s.config.Logger.Printf("ERROR: key-set fetch for %s failed: %v", profileID, err)
		http.Error(w, "key-set fetch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleReset wipes a profile server-side and records the reset timestamp so
// clients holding older cursors discard their local copies on the next pull.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if !authorized(r, profileID) {
		http.Error(w, "profile not permitted for this token", http.StatusForbidden)
		return
	}

	now := s.now().UTC()
	if err := s.db.ResetProfile(r.Context(), profileID, now.UnixNano()); err != nil {
		s.config.Logger.Printf("ERROR: reset for %s failed: %v", profileID, err)
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	s.config.Logger.Printf("profile %s reset at %s", profileID, now.Format(time.RFC3339))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile_id": profileID,
		"reset_at":   now,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
