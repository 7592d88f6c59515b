package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestTokenBucketBurstThenRefill(t *testing.T) {
	c := &fakeClock{t: time.Unix(0, 0)}
	tb := newTokenBucket(2, 3, c.now)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "burst %d", i)
	}
	assert.False(t, tb.Allow())

	c.t = c.t.Add(500 * time.Millisecond)
	assert.True(t, tb.Allow(), "one token after half a second at 2/s")
	assert.False(t, tb.Allow())

	c.t = c.t.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow())
	}
	assert.False(t, tb.Allow(), "refill is capped at capacity")
}

func TestFixedWindowCounter(t *testing.T) {
	c := &fakeClock{t: time.Unix(0, 0)}
	fw := newFixedWindowCounter(2, time.Minute, c.now)

	assert.True(t, fw.Allow())
	assert.True(t, fw.Allow())
	assert.False(t, fw.Allow())

	c.t = c.t.Add(59 * time.Second)
	assert.False(t, fw.Allow())

	c.t = c.t.Add(time.Second)
	assert.True(t, fw.Allow(), "a new window opens on the boundary")
}

func TestImplementations(t *testing.T) {
	var _ RateLimiter = NewTokenBucket(1, 1)
	var _ RateLimiter = NewFixedWindowCounter(1, time.Second)
}
