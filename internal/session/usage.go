package session

import (
	"sync"

	"github.com/hostwise/assistant/internal/domain"
)

// UsageTracker holds the last fetched quota snapshot.
type UsageTracker struct {
	mu    sync.RWMutex
	quota *domain.UsageQuota
}

// NewUsageTracker creates a tracker with no snapshot.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{}
}

// Set stores a snapshot, deriving TotalAvailable from its counters.
func (t *UsageTracker) Set(q domain.UsageQuota) {
	derived := q.Derive()
	t.mu.Lock()
	t.quota = &derived
	t.mu.Unlock()
}

// Snapshot returns a copy of the current quota, or nil before the first fetch.
func (t *UsageTracker) Snapshot() *domain.UsageQuota {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.quota == nil {
		return nil
	}
	q := *t.quota
	return &q
}

// Exhausted reports whether the known quota leaves nothing to send.
// An unknown quota is not exhausted; the server decides.
func (t *UsageTracker) Exhausted() bool {
	q := t.Snapshot()
	return q != nil && q.Exhausted()
}
