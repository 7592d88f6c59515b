// Package collector runs one poll: scrape the trend page and feed the snapshot
// to the session tracker.
package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/pkg/logger"
)

// Fetcher returns the current snapshot of trending terms.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

// Ingester records one snapshot.
type Ingester interface {
	Ingest(ctx context.Context, snapshot []string, tickTime time.Time) (*models.TickResult, error)
}

// Outcome is how a poll ended.
type Outcome string

const (
	Committed Outcome = "committed"
	// Skipped means the scrape failed or came back empty; storage was not touched.
	Skipped Outcome = "skipped"
	// Failed means ingestion was attempted and rolled back.
	Failed Outcome = "failed"
)

// Collector glues a Fetcher to an Ingester. Errors are logged, never returned.
type Collector struct {
	fetcher  Fetcher
	ingester Ingester
	clock    func() time.Time
	timeout  time.Duration
	log      *logger.Logger

	mu       sync.RWMutex
	lastTick time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock overrides time.Now as the source of tick times.
func WithClock(clock func() time.Time) Option {
	return func(c *Collector) { c.clock = clock }
}

// WithTimeout bounds one poll, scrape and ingest together.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) { c.timeout = d }
}

// New creates a Collector.
func New(f Fetcher, in Ingester, log *logger.Logger, opts ...Option) *Collector {
	if log == nil {
		log = logger.Discard()
	}
	c := &Collector{
		fetcher:  f,
		ingester: in,
		clock:    time.Now,
		log:      log.Component("collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tick performs one poll. The tick time is taken before scraping so that it
// lands on the schedule boundary.
func (c *Collector) Tick(ctx context.Context) Outcome {
	tickTime := c.clock()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	terms, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.log.WithError(models.NewErrorInfo(err, "crawler_error")).WithPayload(c.staleness(tickTime)).Warn("抓取失败，跳过本次采集")
		return Skipped
	}
	terms = dedupe(terms)
	if len(terms) == 0 {
		c.log.WithPayload(c.staleness(tickTime)).Warn("抓取结果为空，跳过本次采集")
		return Skipped
	}

	if _, err := c.ingester.Ingest(ctx, terms, tickTime); err != nil {
		errType := "database_error"
		switch {
		case errors.Is(err, models.ErrIntegrity):
			errType = "integrity_violation"
		case errors.Is(err, models.ErrStaleTick):
			errType = "stale_tick"
		}
		c.log.WithError(models.NewErrorInfo(err, errType)).WithPayload(c.staleness(tickTime)).Error("采集写入失败，等待下一次调度")
		return Failed
	}

	c.mu.Lock()
	c.lastTick = tickTime
	c.mu.Unlock()
	return Committed
}

// Run adapts Tick to a scheduler job.
func (c *Collector) Run(ctx context.Context) {
	c.Tick(ctx)
}

// LastTick returns the time of the last committed poll, zero if none.
func (c *Collector) LastTick() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTick
}

// staleness 描述距上次成功采集已过去多久，便于从日志判断榜单是否停更。
func (c *Collector) staleness(now time.Time) map[string]interface{} {
	last := c.LastTick()
	if last.IsZero() {
		return map[string]interface{}{"tick_time": now, "last_committed": nil}
	}
	return map[string]interface{}{
		"tick_time":      now,
		"last_committed": last,
		"stale_seconds":  int64(now.Sub(last).Seconds()),
	}
}

func dedupe(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
