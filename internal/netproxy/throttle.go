package netproxy

import (
	"sync"
	"time"
)

// Throttle accepts at most one call per interval.
type Throttle struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	last     time.Time
	accepted bool
}

// NewThrottle creates a Throttle. A nil now uses time.Now.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{interval: interval, now: now}
}

// Allow reports whether a call made now is accepted, and if so starts a new
// interval.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.accepted && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	t.accepted = true
	return true
}

// Reset makes the next call accepted.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accepted = false
}
