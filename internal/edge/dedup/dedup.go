// Package dedup provides the server-side message deduplication window. A
// msgId seen inside the TTL is acknowledged but its effect is never
// re-executed; past the window a replay is treated as new intent.
package dedup

import (
	"sync"
	"time"
)

const (
	// DefaultTTL is the effect window: long enough to cover realistic
	// disconnect durations on degraded networks.
	DefaultTTL = 15 * time.Minute

	sweepInterval = time.Minute
)

// Table tracks first-seen times per (incidentId, msgId). Entries are keyed
// per incident so identifiers never collide across rooms.
type Table struct {
	mu        sync.Mutex
	incidents map[string]map[string]time.Time
	ttl       time.Duration

	stopCh    chan struct{}
	closeOnce sync.Once
}

// New creates a table and starts its background sweeper. ttl <= 0 selects
// DefaultTTL.
func New(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Table{
		incidents: make(map[string]map[string]time.Time),
		ttl:       ttl,
		stopCh:    make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// MarkIfNew atomically records (msgId, now) inside the incident's window if
// absent. It returns true iff this is the first sighting within the TTL.
func (t *Table) MarkIfNew(incidentID, msgID string) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	incident, ok := t.incidents[incidentID]
	if !ok {
		incident = make(map[string]time.Time)
		t.incidents[incidentID] = incident
	}
	if seen, ok := incident[msgID]; ok && now.Sub(seen) <= t.ttl {
		return false
	}
	incident[msgID] = now
	return true
}

// Len returns the number of tracked entries across all incidents.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, incident := range t.incidents {
		count += len(incident)
	}
	return count
}

// Close stops the sweeper.
func (t *Table) Close() {
	t.closeOnce.Do(func() {
		close(t.stopCh)
	})
}

func (t *Table) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweep(time.Now())
		case <-t.stopCh:
			return
		}
	}
}

// sweep drops entries older than the TTL and incidents left with no entries.
func (t *Table) sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for incidentID, incident := range t.incidents {
		for msgID, seen := range incident {
			if now.Sub(seen) > t.ttl {
				delete(incident, msgID)
			}
		}
		if len(incident) == 0 {
			delete(t.incidents, incidentID)
		}
	}
}
