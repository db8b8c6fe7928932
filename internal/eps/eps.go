// Package eps estimates the inbound event rate over fixed windows.
package eps

import (
	"sync"
	"time"
)

const DefaultWindow = 10 * time.Second

// Tracker counts events in the current window and reports the rate of the
// last completed one. State is in memory only.
type Tracker struct {
	window time.Duration

	mu           sync.Mutex
	windowStart  time.Time
	count        int
	previousRate float64
}

func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window}
}

func (t *Tracker) Record(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(now)
	t.count++
}

// Rate returns events per second for the most recent completed window.
func (t *Tracker) Rate(now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(now)
	return t.previousRate
}

func (t *Tracker) rollLocked(now time.Time) {
	if t.windowStart.IsZero() {
		t.windowStart = now
		return
	}
	elapsed := now.Sub(t.windowStart)
	if elapsed < t.window {
		return
	}
	if elapsed < 2*t.window {
		t.previousRate = float64(t.count) / t.window.Seconds()
	} else {
		// A whole window passed with nothing recorded.
		t.previousRate = 0
	}
	windows := elapsed / t.window
	t.windowStart = t.windowStart.Add(windows * t.window)
	t.count = 0
}
