package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowCounter allows at most limit requests per window.
// Windows are aligned to the first request after the previous one expired.
type FixedWindowCounter struct {
	limit  int
	window time.Duration
	count  int
	start  time.Time
	now    clock
	mu     sync.Mutex
}

// NewFixedWindowCounter creates a counter whose first window starts now.
func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	return newFixedWindowCounter(limit, window, time.Now)
}

func newFixedWindowCounter(limit int, window time.Duration, now clock) *FixedWindowCounter {
	return &FixedWindowCounter{limit: limit, window: window, start: now(), now: now}
}

// Allow counts the request against the current window.
func (c *FixedWindowCounter) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !now.Before(c.start.Add(c.window)) {
		c.start = now
		c.count = 0
	}
	if c.count >= c.limit {
		return false
	}
	c.count++
	return true
}
