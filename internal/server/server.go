// Package server is the reference wordhoard backend: a complete
// implementation of the pull/push/key-set protocol over HTTP, backed by its
// own SQLite database.
//
// It exists for local development (`wh serve`) and for integration tests
// that need a real multi-tenant counterpart: per-record tenant
// authorization, server-side merge policies, tenant resets, and
// recomputation of server-computed fields from the practice history.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config holds server configuration.
type Config struct {
	// Addr to listen on, e.g. ":8787".
	Addr string

	// Tokens maps bearer tokens to the profile ids they may touch. An empty
	// map disables authorization (dev mode); a token mapped to nil may touch
	// any profile.
	Tokens map[string][]string

	// Logger for request/decision activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:   ":8787",
		Logger: log.New(os.Stderr, "[server] ", log.LstdFlags),
	}
}

// Server serves the sync protocol over HTTP.
type Server struct {
	db     *DB
	config *Config
	http   *http.Server

	// now is the timestamp source; tests replace it.
	now func() time.Time
}

// New creates a Server over an opened backend database.
func New(db *DB, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	return &Server{db: db, config: config, now: time.Now}
}

// Handler builds the chi router. Exposed separately so tests can mount it on
// httptest.Server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/profiles/{profileID}/changes", s.handlePull)
		r.Get("/profiles/{profileID}/keys", s.handleKeySets)
		r.Post("/profiles/{profileID}/reset", s.handleReset)
		r.Post("/push", s.handlePush)
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Printf("listening on %s", s.config.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type ctxKey int

const profilesKey ctxKey = iota

// authenticate resolves the bearer token to its allowed profile set and
// stashes it on the request context. Authorization itself happens per
// profile (pull, keys, reset) or per record (push).
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.Tokens) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		allowed, ok := s.config.Tokens[token]
		if !ok || token == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profilesKey, allowed)))
	})
}

// authorized reports whether the request's token may touch the profile.
func authorized(r *http.Request, profileID string) bool {
	v := r.Context().Value(profilesKey)
	if v == nil {
		// Authorization disabled.
		return true
	}
	allowed := v.([]string)
	if allowed == nil {
		return true
	}
	for _, p := range allowed {
		if p == profileID {
			return true
		}
	}
	return false
}
