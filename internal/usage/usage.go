// Package usage tracks resource consumption over a trailing time window and
// implements the retry-with-exponential-backoff policy shared by every
// rate-limited service.
package usage

import (
	"sync"
	"time"
)

// timedEntry is a value tagged with the time it was added.
type timedEntry struct {
	value float64
	at    time.Time
}

// TimeBoundedTracker accumulates values and discards any older than
// MaxAge, subtracting their contribution from the running total. It backs
// the LLM service's moving-window rate limit (requests/min and
// tokens/min).
type TimeBoundedTracker struct {
	MaxAge time.Duration

	mu    sync.Mutex
	total float64
	q     []timedEntry
}

// NewTimeBoundedTracker returns a tracker with the given window.
func NewTimeBoundedTracker(maxAge time.Duration) *TimeBoundedTracker {
	return &TimeBoundedTracker{MaxAge: maxAge}
}

// Add records a new value, timestamped now.
func (t *TimeBoundedTracker) Add(value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.q = append(t.q, timedEntry{value: value, at: time.Now()})
	t.total += value
}

// Total returns the sum of all values younger than MaxAge, discarding
// anything older as a side effect.
func (t *TimeBoundedTracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discardOld()
	return t.total
}

func (t *TimeBoundedTracker) discardOld() {
	cutoff := time.Now().Add(-t.MaxAge)
	i := 0
	for i < len(t.q) && t.q[i].at.Before(cutoff) {
		t.total -= t.q[i].value
		i++
	}
	if i > 0 {
		t.q = t.q[i:]
	}
}
