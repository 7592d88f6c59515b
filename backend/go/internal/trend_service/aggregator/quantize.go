package aggregator

import (
	"fmt"
	"time"

	"TrendWatch/backend/go/internal/models"
)

// Quantizer buckets session overlap into whole polling intervals.
//
// A session touching any part of an interval counts it as a hit, and the overlap
// is always rounded up: hits = ceil(overlap / Bucket) + 1. When Enabled is false
// the raw overlap in seconds is reported instead, with hits still filled in.
type Quantizer struct {
	Bucket  time.Duration
	Enabled bool
}

// Validate rejects buckets that are not a positive whole number of seconds.
func (q Quantizer) Validate() error {
	if q.Bucket < time.Second || q.Bucket%time.Second != 0 {
		return fmt.Errorf("%w: bucket must be a positive whole number of seconds, got %s", models.ErrInvalidQuery, q.Bucket)
	}
	return nil
}

// Hits counts the buckets an overlap touches.
func (q Quantizer) Hits(overlap time.Duration) int64 {
	if overlap < 0 {
		overlap = 0
	}
	n := int64(overlap / q.Bucket)
	if overlap%q.Bucket != 0 {
		n++
	}
	return n + 1
}

// Measure returns the covered seconds and hit count credited for one overlap.
func (q Quantizer) Measure(overlap time.Duration) (int64, int64) {
	hits := q.Hits(overlap)
	if !q.Enabled {
		return int64(overlap / time.Second), hits
	}
	return hits * int64(q.Bucket/time.Second), hits
}

// FormatDuration renders seconds for display, rounding up to the minute.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0m"
	}
	minutes := (seconds + 59) / 60
	h, m := minutes/60, minutes%60
	switch {
	case h >= 24:
		return fmt.Sprintf("%dd %dh %dm", h/24, h%24, m)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
