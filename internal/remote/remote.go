// Package remote is the transport boundary of the sync engine: pull, push,
// and key-set fetch against the shared backend.
//
// The transport is assumed unreliable and at-least-once; idempotency is the
// engine's job (via merge policies), not the transport's. There is no retry
// or backoff here: a failed call surfaces as ErrUnavailable and the next
// debounced round is the retry.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/wordhoard/wordhoard/internal/schema"
)

// ErrUnavailable marks a transport-level failure: the backend could not be
// reached or answered with a server error. Rounds abort cleanly on it.
var ErrUnavailable = errors.New("remote unavailable")

// RejectedError is a definitive remote refusal, e.g. a tenant-ownership
// check failing on a pushed record. It is surfaced, never blindly retried.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("remote rejected request (%d): %s", e.Status, e.Message)
}

// Client is the remote surface the sync engine consumes. Implemented by
// HTTPClient in production and by in-memory fakes in tests.
type Client interface {
	// Pull returns every record newer than since (everything when since is
	// nil), the server clock, and any tenant reset newer than the cursor.
	Pull(ctx context.Context, profileID string, since *time.Time) (*schema.PullResponse, error)

	// Push submits dirty records. Every record carries its own profile id;
	// the server authorizes per record, not per request.
	Push(ctx context.Context, req *schema.PushRequest) (*schema.PushResponse, error)

	// FetchKeySets returns the authoritative remote business-key sets for
	// one profile. Orphan reconciler only.
	FetchKeySets(ctx context.Context, profileID string) (*schema.KeySets, error)
}

// HTTPClient implements Client over the wordhoard HTTP protocol.
type HTTPClient struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *log.Logger
}

// NewHTTPClient creates a client for the given base URL. The token is sent
// as a bearer credential; the identity/session provider that issues it is a
// collaborator, not part of this engine. If logger is nil, a default stderr
// logger is used.
func NewHTTPClient(baseURL, token string, logger *log.Logger) *HTTPClient {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{},
		logger:  logger,
	}
}

// Pull implements Client.Pull.
func (c *HTTPClient) Pull(ctx context.Context, profileID string, since *time.Time) (*schema.PullResponse, error) {
	u := fmt.Sprintf("%s/v1/profiles/%s/changes", c.baseURL, url.PathEscape(profileID))
	if since != nil {
		u += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	var out schema.PullResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Push implements Client.Push.
func (c *HTTPClient) Push(ctx context.Context, req *schema.PushRequest) (*schema.PushResponse, error) {
	u := c.baseURL + "/v1/push"

	var out schema.PushResponse
	if err := c.do(ctx, http.MethodPost, u, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchKeySets implements Client.FetchKeySets.
func (c *HTTPClient) FetchKeySets(ctx context.Context, profileID string) (*schema.KeySets, error) {
	u := fmt.Sprintf("%s/v1/profiles/%s/keys", c.baseURL, url.PathEscape(profileID))

	var out schema.KeySets
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request and classifies the outcome: transport and 5xx
// failures become ErrUnavailable, 4xx becomes RejectedError.
func (c *HTTPClient) do(ctx context.Context, method, u string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: server returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RejectedError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
