// Package status holds the app's runtime status: an explicitly owned,
// injectable state object with a process-start lifecycle, replacing
// ambient global state.
package status

import "sync"

// Status is a point-in-time snapshot of the app's runtime state.
type Status struct {
	WatchersRunning bool   `json:"watchers_running"`
	BufferedEvents  int    `json:"buffered_events"`
	LastSummarized  string `json:"last_summarized,omitempty"`
}

// Tracker is a concurrency-safe status holder. The write side is the app's
// background loops; the read side is the HTTP status endpoint.
type Tracker struct {
	mu sync.RWMutex
	s  Status
}

// NewTracker creates a zeroed tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetWatchersRunning records whether background watchers are active.
func (t *Tracker) SetWatchersRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.WatchersRunning = running
}

// AddBuffered adds n to the buffered-event counter.
func (t *Tracker) AddBuffered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.BufferedEvents += n
}

// ResetBuffered zeroes the buffered-event counter (after summarization
// drains a day's events).
func (t *Tracker) ResetBuffered() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.BufferedEvents = 0
}

// SetLastSummarized records the most recently summarized date.
func (t *Tracker) SetLastSummarized(date string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.LastSummarized = date
}

// Snapshot returns the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.s
}
