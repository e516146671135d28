package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wordhoard/wordhoard/internal/merge"
	"github.com/wordhoard/wordhoard/internal/reconcile"
	"github.com/wordhoard/wordhoard/internal/remote"
	"github.com/wordhoard/wordhoard/internal/schema"
	"github.com/wordhoard/wordhoard/internal/store"
)

// Config holds orchestrator configuration.
type Config struct {
	// MinInterval is the debounce window: a second round for the same
	// profile inside this window no-ops.
	MinInterval time.Duration

	// Logger for round activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MinInterval: 5 * time.Second,
		Logger:      log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Orchestrator runs sync rounds against one local store.
type Orchestrator struct {
	store   *store.Store
	remote  remote.Client
	limiter *rateLimiter
	logger  *log.Logger
	now     func() time.Time
}

// New creates an Orchestrator. If config is nil, defaults are used.
func New(st *store.Store, rc remote.Client, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Orchestrator{
		store:   st,
		remote:  rc,
		limiter: newRateLimiter(config.MinInterval),
		logger:  config.Logger,
		now:     time.Now,
	}
}

// Report summarizes one completed round.
type Report struct {
	ProfileID   string
	Pulled      int
	Applied     int
	Pushed      int
	TenantReset bool
	ServerTime  time.Time
	Duration    time.Duration
}

// SyncProfile runs one full round for a profile.
//
// Returns ErrDebounced if a round for this profile started within the
// minimum interval. A pull failure aborts without mutating the cursor; a
// push failure returns an error but leaves the applied pull and the
// advanced cursor in place, with the dirty records still pending.
func (o *Orchestrator) SyncProfile(ctx context.Context, profileID string) (*Report, error) {
	if !o.limiter.allow(profileID, o.now()) {
		return nil, ErrDebounced
	}

	start := o.now()
	report := &Report{ProfileID: profileID}

	cursor, err := o.store.Cursor(ctx, profileID)
	if err != nil {
		return nil, err
	}

	pulled, err := o.remote.Pull(ctx, profileID, cursor)
	if err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	report.Pulled = pulled.Records.Len()
	report.ServerTime = pulled.ServerTimestamp

	// A tenant reset newer than the cursor invalidates everything local:
	// wipe before applying so stale records cannot survive the reset.
	if pulled.TenantResetAt != nil && (cursor == nil || pulled.TenantResetAt.After(*cursor)) {
		o.logger.Printf("tenant reset at %s for profile %s: wiping local records",
			pulled.TenantResetAt.Format(time.RFC3339), profileID)
		if err := o.store.WipeProfile(ctx, profileID); err != nil {
			return nil, fmt.Errorf("tenant reset wipe failed: %w", err)
		}
		report.TenantReset = true
	}

	resolved, err := o.resolve(ctx, profileID, &pulled.Records)
	if err != nil {
		return nil, err
	}

	if err := o.store.ApplyChangeset(ctx, resolved); err != nil {
		return nil, fmt.Errorf("apply failed: %w", err)
	}
	report.Applied = resolved.Len()

	// The changeset is durable; only now may the cursor advance.
	if err := o.store.SetCursor(ctx, profileID, pulled.ServerTimestamp); err != nil {
		return nil, fmt.Errorf("cursor advance failed: %w", err)
	}

	pushed, err := o.pushDirty(ctx, profileID)
	if err != nil {
		return report, err
	}
	report.Pushed = pushed

	report.Duration = o.now().Sub(start)
	o.logger.Printf("round complete for %s: pulled=%d applied=%d pushed=%d in %v",
		profileID, report.Pulled, report.Applied, report.Pushed, report.Duration.Round(time.Millisecond))
	return report, nil
}

// resolve reconciles pulled records against the local collections and runs
// the merge policy engine, producing the changeset to apply.
func (o *Orchestrator) resolve(ctx context.Context, profileID string, pulled *schema.Changeset) (*schema.Changeset, error) {
	out := &schema.Changeset{}

	if len(pulled.Words) > 0 {
		locals, err := o.store.ListWords(ctx, profileID)
		if err != nil {
			return nil, err
		}
		for _, m := range reconcile.Plan(locals, pulled.Words, o.logger) {
			out.Words = append(out.Words, merge.Word(m.Local, m.Remote))
		}
	}

	if len(pulled.Sessions) > 0 {
		locals, err := o.store.ListSessions(ctx, profileID)
		if err != nil {
			return nil, err
		}
		for _, m := range reconcile.Plan(locals, pulled.Sessions, o.logger) {
			out.Sessions = append(out.Sessions, merge.Session(m.Local, m.Remote))
		}
	}

	if len(pulled.ModeSettings) > 0 {
		locals, err := o.store.ListModeSettings(ctx, profileID)
		if err != nil {
			return nil, err
		}
		for _, m := range reconcile.Plan(locals, pulled.ModeSettings, o.logger) {
			out.ModeSettings = append(out.ModeSettings, merge.ModeSetting(m.Local, m.Remote))
		}
	}

	return out, nil
}

// pushDirty collects and pushes the profile's dirty records, clearing dirty
// status on exactly the submitted set once the push is acknowledged.
func (o *Orchestrator) pushDirty(ctx context.Context, profileID string) (int, error) {
	req, err := o.store.DirtyChangeset(ctx, profileID)
	if err != nil {
		return 0, err
	}
	if req.Len() == 0 {
		return 0, nil
	}

	resp, err := o.remote.Push(ctx, req)
	if err != nil {
		// Records stay dirty; the declared policies make the wholesale
		// retry on the next round idempotent.
		return 0, fmt.Errorf("push failed, %d records remain pending: %w", req.Len(), err)
	}

	if err := o.store.ClearDirty(ctx, req); err != nil {
		return 0, fmt.Errorf("confirm failed: %w", err)
	}

	accepted := 0
	for _, n := range resp.Accepted {
		accepted += n
	}
	o.logger.Printf("pushed %d records for %s (accepted=%d)", req.Len(), profileID, accepted)
	return req.Len(), nil
}
