package ratelimiter

import "time"

// RateLimiter decides whether one more request may proceed right now.
type RateLimiter interface {
	// Allow reports whether the request may proceed and consumes capacity if so.
	Allow() bool
}

// clock is swapped in tests.
type clock func() time.Time
