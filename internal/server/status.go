package server

import (
	"sync"
	"time"
)

// statusTracker remembers the outcome of the most recent pipeline operation
// so dashboards can poll a single human-readable line.
type statusTracker struct {
	mu   sync.Mutex
	text string
	at   time.Time
}

func newStatusTracker() *statusTracker {
	return &statusTracker{text: "idle", at: time.Now().UTC()}
}

func (t *statusTracker) set(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text
	t.at = time.Now().UTC()
}

func (t *statusTracker) get() (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text, t.at
}
