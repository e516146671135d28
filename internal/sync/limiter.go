package sync

import (
	stdsync "sync"
	"time"
)

// rateLimiter is the explicit debounce policy: given the current time and
// the last attempt for a profile, allow or deny a new round. It is owned by
// the orchestrator instance; there is no process-global sync clock.
type rateLimiter struct {
	minInterval time.Duration

	mu   stdsync.Mutex
	last map[string]time.Time
}

func newRateLimiter(minInterval time.Duration) *rateLimiter {
	return &rateLimiter{
		minInterval: minInterval,
		last:        make(map[string]time.Time),
	}
}

// allow records an attempt and reports whether it may proceed. A denied
// attempt is not recorded, so a steady stream of callers cannot starve the
// profile forever.
func (l *rateLimiter) allow(profileID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[profileID]; ok && now.Sub(last) < l.minInterval {
		return false
	}
	l.last[profileID] = now
	return true
}
