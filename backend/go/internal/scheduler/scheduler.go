// Package scheduler fires the poll job on wall-clock boundaries.
package scheduler

import (
	"context"
	"sync"
	"time"

	"TrendWatch/backend/go/pkg/logger"

	"github.com/robfig/cron/v3"
)

// NextTick returns the first boundary strictly after now, where boundaries are
// multiples of interval counted from midnight in now's location. With a two
// minute interval this is the next even minute with seconds zeroed.
func NextTick(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = time.Minute
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	n := now.Sub(midnight)/interval + 1
	next := midnight.Add(n * interval)

	// An interval that does not divide the day realigns at the next midnight.
	if tomorrow := midnight.AddDate(0, 0, 1); next.After(tomorrow) {
		next = tomorrow
	}
	return next
}

// BoundarySchedule is a cron.Schedule firing on NextTick boundaries.
type BoundarySchedule struct {
	Interval time.Duration
	Location *time.Location
}

// Next implements cron.Schedule.
func (s BoundarySchedule) Next(t time.Time) time.Time {
	if s.Location != nil {
		t = t.In(s.Location)
	}
	return NextTick(t, s.Interval)
}

// Options configures a Scheduler.
type Options struct {
	Interval   time.Duration
	Location   *time.Location
	RunOnStart bool
	Logger     *logger.Logger
}

// Scheduler runs a single job on BoundarySchedule. Overlapping runs are
// skipped and panics are recovered, so the loop survives a bad tick.
type Scheduler struct {
	cron    *cron.Cron
	opts    Options
	job     func(ctx context.Context)
	log     *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	entryID cron.EntryID
	wg      sync.WaitGroup
}

// New creates a Scheduler for job.
func New(job func(ctx context.Context), opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.Component("scheduler")
	cronLog := cron.PrintfLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		opts:   opts,
		job:    job,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start schedules the job and, if RunOnStart is set, fires it once right away.
func (s *Scheduler) Start() {
	s.entryID = s.cron.Schedule(
		BoundarySchedule{Interval: s.opts.Interval, Location: s.opts.Location},
		cron.FuncJob(func() { s.job(s.ctx) }),
	)
	s.cron.Start()
	s.log.WithPayload(map[string]interface{}{
		"interval": s.opts.Interval.String(),
		"next":     s.Next().Format(time.RFC3339),
	}).Info("调度器已启动")

	if s.opts.RunOnStart {
		wrapped := s.cron.Entry(s.entryID).WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			wrapped.Run()
		}()
	}
}

// Next returns the next scheduled fire time.
func (s *Scheduler) Next() time.Time {
	if e := s.cron.Entry(s.entryID); e.Valid() && !e.Next.IsZero() {
		return e.Next
	}
	return BoundarySchedule{Interval: s.opts.Interval, Location: s.opts.Location}.Next(time.Now())
}

// Stop prevents new runs, waits for a running job to finish, then cancels the job context.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.cancel()
	s.log.Info("调度器已停止")
}
