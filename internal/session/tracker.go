// Package session tracks per-user channel activity in process memory.
//
// WhatsApp only permits free-form outbound messages inside a 24-hour window
// after the user's last inbound message; outside it, only pre-approved
// templates may be sent. The tracker answers "is that window open" for a
// given user. State is intentionally not persisted: after a restart every
// user reads as inactive, and the worst case is an unnecessary template
// fallback, never a correctness problem in the order flow.
package session

import (
	"sync"
	"time"
)

// Tracker records the last inbound activity instant per user.
// It is safe for concurrent use.
type Tracker struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewTracker builds a tracker with the given session window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Touch records the current instant as the user's last activity.
// Concurrent touches for the same user resolve last-write-wins.
func (t *Tracker) Touch(userID string) {
	now := t.now()
	t.mu.Lock()
	t.seen[userID] = now
	t.mu.Unlock()
}

// IsActive reports whether the user's session window is open. Users never
// seen by this process are inactive.
func (t *Tracker) IsActive(userID string) bool {
	t.mu.Lock()
	last, ok := t.seen[userID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return t.now().Sub(last) <= t.window
}
