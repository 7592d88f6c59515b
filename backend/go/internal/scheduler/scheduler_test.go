package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(time.DateTime, s, time.UTC)
	require.NoError(t, err)
	return ts
}

func TestNextTickTwoMinutes(t *testing.T) {
	cases := map[string]string{
		"2024-06-13 10:00:00": "2024-06-13 10:02:00",
		"2024-06-13 10:00:01": "2024-06-13 10:02:00",
		"2024-06-13 10:01:59": "2024-06-13 10:02:00",
		"2024-06-13 10:03:30": "2024-06-13 10:04:00",
		"2024-06-13 23:59:00": "2024-06-14 00:00:00",
	}
	for now, want := range cases {
		assert.Equal(t, want, NextTick(at(t, now), 2*time.Minute).Format(time.DateTime), now)
	}
}

func TestNextTickIsStrictlyAfterAndAligned(t *testing.T) {
	now := at(t, "2024-06-13 10:00:00").Add(123 * time.Millisecond)
	for i := 0; i < 50; i++ {
		next := NextTick(now, 2*time.Minute)
		assert.True(t, next.After(now))
		assert.Zero(t, next.Second())
		assert.Zero(t, next.Minute()%2)
		now = next
	}
}

func TestNextTickRealignsAtMidnight(t *testing.T) {
	next := NextTick(at(t, "2024-06-13 23:50:00"), 7*time.Hour)
	assert.Equal(t, "2024-06-14 00:00:00", next.Format(time.DateTime))
}

func TestBoundaryScheduleUsesLocation(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	s := BoundarySchedule{Interval: 12 * time.Hour, Location: kst}
	// 10:00 UTC is 19:00 KST; the next KST boundary is midnight KST, 15:00 UTC.
	next := s.Next(at(t, "2024-06-13 10:00:00"))
	assert.True(t, next.Equal(at(t, "2024-06-13 15:00:00")), next.String())
}

func TestSchedulerRunsOnStart(t *testing.T) {
	var runs int32
	done := make(chan struct{}, 1)
	s := New(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
		select {
		case done <- struct{}{}:
		default:
		}
	}, Options{Interval: time.Hour, Location: time.UTC, RunOnStart: true})

	s.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	assert.True(t, s.Next().After(time.Now()))
	s.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestSchedulerRecoversFromPanics(t *testing.T) {
	done := make(chan struct{})
	s := New(func(ctx context.Context) {
		defer close(done)
		panic("boom")
	}, Options{Interval: time.Hour, Location: time.UTC, RunOnStart: true})

	s.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	s.Stop()
}

func TestStopCancelsJobContext(t *testing.T) {
	var ctx context.Context
	ran := make(chan struct{})
	s := New(func(c context.Context) {
		ctx = c
		close(ran)
	}, Options{Interval: time.Hour, Location: time.UTC, RunOnStart: true})

	s.Start()
	<-ran
	s.Stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
