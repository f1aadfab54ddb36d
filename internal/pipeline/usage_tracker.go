package pipeline

import "sync"

// UsageTracker accumulates per-location request/token counts as
// services.LLMService reports them over the course of a run, implementing
// services.UsageSink. ProcessLocation reads a location's accumulated
// totals once, at the end of its run, via Snapshot, and persists them
// alongside the wall-clock time it took.
type UsageTracker struct {
	mu       sync.Mutex
	requests map[string]int
	tokens   map[string]int
}

// NewUsageTracker returns an empty UsageTracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{requests: map[string]int{}, tokens: map[string]int{}}
}

// Record implements services.UsageSink.
func (t *UsageTracker) Record(location string, requestTokens, responseTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests[location]++
	t.tokens[location] += requestTokens + responseTokens
}

// Snapshot returns the request and token counts accumulated so far for
// location.
func (t *UsageTracker) Snapshot(location string) (requests, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[location], t.tokens[location]
}
