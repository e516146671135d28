// Package daemon provides the background sync daemon.
//
// The daemon:
// 1. Runs a sync round for each configured profile on a fixed interval
// 2. Watches the local database for out-of-band writes and triggers
//    debounced rounds so changes upload promptly
// 3. Audits drift after each round; drifted profiles get a dry-run orphan
//    scan so the monitor can show where the drift sits
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wordhoard/wordhoard/internal/monitor"
	"github.com/wordhoard/wordhoard/internal/store"
	"github.com/wordhoard/wordhoard/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// Profiles to sync. At least one is required.
	Profiles []string

	// Interval between periodic rounds per profile.
	Interval time.Duration

	// DebounceInterval is how long to wait after a local database write
	// before triggering a round. This batches rapid updates together.
	DebounceInterval time.Duration

	// Monitor, when set, receives round and health events for broadcast.
	Monitor *monitor.Server

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon runs periodic and write-triggered sync rounds.
type Daemon struct {
	orch    *sync.Orchestrator
	auditor *sync.Auditor
	store   *store.Store
	config  *Config

	watcher *fsnotify.Watcher

	pendingAt   time.Time
	pendingMu   gosync.Mutex
	havePending bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// New creates a Daemon. Use Start() to begin syncing.
func New(orch *sync.Orchestrator, auditor *sync.Auditor, st *store.Store, config *Config) (*Daemon, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if len(config.Profiles) == 0 {
		return nil, fmt.Errorf("at least one profile is required")
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		orch:    orch,
		auditor: auditor,
		store:   st,
		config:  config,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Run an immediate round for every profile
// 2. Watch the database directory for writes
// 3. Run periodic rounds on the configured interval
// 4. Run debounced rounds after local writes
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	d.syncAll()

	// Watch the database directory; SQLite in WAL mode surfaces local
	// writes as appends to the -wal file.
	dbDir := filepath.Dir(d.store.Path())
	if err := d.watcher.Add(dbDir); err != nil {
		return fmt.Errorf("failed to watch database directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", dbDir)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processPending()
	go d.periodicRounds()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and queues a debounced round.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if event.Name != d.store.Path() && event.Name != d.store.WALPath() {
				continue
			}

			d.queueRound()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueRound records a local write, resetting the debounce clock.
func (d *Daemon) queueRound() {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	d.pendingAt = time.Now()
	d.havePending = true
}

// processPending runs a round once the debounce window after the last local
// write has elapsed.
func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.pendingMu.Lock()
			due := d.havePending && time.Since(d.pendingAt) >= d.config.DebounceInterval
			if due {
				d.havePending = false
			}
			d.pendingMu.Unlock()

			if due {
				d.config.Logger.Println("Local write detected, syncing")
				d.syncAll()
			}
		}
	}
}

// periodicRounds runs rounds on the configured interval.
func (d *Daemon) periodicRounds() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.syncAll()
		}
	}
}

// syncAll runs one round per configured profile, then audits each.
func (d *Daemon) syncAll() {
	for _, profileID := range d.config.Profiles {
		d.syncProfile(profileID)
	}
}

// syncProfile runs one round and its post-round audit for a profile.
func (d *Daemon) syncProfile(profileID string) {
	report, err := d.orch.SyncProfile(d.ctx, profileID)
	switch {
	case errors.Is(err, sync.ErrDebounced):
		return
	case err != nil:
		d.config.Logger.Printf("Round failed for %s: %v", profileID, err)
		d.emit(monitor.RoundFailedEvent(profileID, err))
		return
	default:
		d.emit(monitor.RoundEvent(report))
	}

	if d.auditor == nil {
		return
	}

	audit := d.auditor.Audit(d.ctx, profileID)
	d.emit(monitor.HealthEvent(audit))
	if audit.RecommendDeepRepair {
		d.config.Logger.Printf("WARNING: profile %s drifted beyond tolerance; run `wh repair %s` to force a full resync",
			profileID, profileID)

		// A dry-run orphan pass shows where the drift sits without
		// touching anything.
		orphans, err := d.orch.ReconcileOrphans(d.ctx, profileID, false)
		if err != nil {
			d.config.Logger.Printf("Orphan scan for %s failed: %v", profileID, err)
			return
		}
		d.emit(monitor.OrphanEvent(orphans))
	}
}

// emit broadcasts an event when a monitor is attached.
func (d *Daemon) emit(ev monitor.Event) {
	if d.config.Monitor == nil {
		return
	}
	d.config.Monitor.Broadcast(ev)
}
