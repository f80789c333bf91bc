package orchestrator

import (
	"sync"
	"time"
)

// ContinuityWindow is how long a channel stays conversationally active after
// the agent replies in it. Any message during the window triggers a response
// cycle without an explicit mention.
const ContinuityWindow = 120 * time.Second

// Continuity tracks the last time the agent replied in each channel.
// Entries are never evicted; stale ones are harmless.
type Continuity struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewContinuity creates a tracker. A zero window falls back to
// ContinuityWindow.
func NewContinuity(window time.Duration) *Continuity {
	if window <= 0 {
		window = ContinuityWindow
	}
	return &Continuity{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Touch records a successful reply in the channel at the current time.
func (c *Continuity) Touch(channelID string) {
	c.mu.Lock()
	c.last[channelID] = time.Now()
	c.mu.Unlock()
}

// IsActive reports whether the channel is inside its continuity window at
// the given instant.
func (c *Continuity) IsActive(channelID string, now time.Time) bool {
	c.mu.Lock()
	t, ok := c.last[channelID]
	c.mu.Unlock()
	return ok && now.Sub(t) < c.window
}

// LastResponse returns the recorded reply time for a channel, if any.
func (c *Continuity) LastResponse(channelID string) (time.Time, bool) {
	c.mu.Lock()
	t, ok := c.last[channelID]
	c.mu.Unlock()
	return t, ok
}
