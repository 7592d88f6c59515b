package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/trend_service/aggregator"
	"TrendWatch/backend/go/internal/trend_service/cache"
	"TrendWatch/backend/go/internal/trend_service/period"
	"TrendWatch/backend/go/internal/trend_service/registry"
	"TrendWatch/backend/go/internal/trend_service/store"
	"TrendWatch/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	termHistoryLimit  = 50
	defaultActiveSpan = 48 * time.Hour
)

// CurrentReader reads the cached current ranking.
type CurrentReader interface {
	Get(ctx context.Context) (*cache.Snapshot, bool, error)
}

// API provides handlers for the trend query service. It only reads committed state.
type API struct {
	store      *store.Store
	registry   *registry.Registry
	aggregator *aggregator.Aggregator
	cache      CurrentReader
	loc        *time.Location
	clock      func() time.Time
	logger     *logger.Logger
}

// NewAPI creates the handlers. current may be nil when Redis is disabled.
func NewAPI(s *store.Store, agg *aggregator.Aggregator, current CurrentReader, loc *time.Location, log *logger.Logger) *API {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.Discard()
	}
	return &API{
		store:      s,
		registry:   registry.New(),
		aggregator: agg,
		cache:      current,
		loc:        loc,
		clock:      time.Now,
		logger:     log.Component("api"),
	}
}

// RankingResponse is the body of GET /api/v1/rankings.
type RankingResponse struct {
	Period period.Period       `json:"period"`
	Title  string              `json:"title"`
	Start  time.Time           `json:"start"`
	End    time.Time           `json:"end"`
	Items  []models.RankedTerm `json:"items"`
}

// CurrentResponse is the body of GET /api/v1/rankings/current.
type CurrentResponse struct {
	UpdatedAt *time.Time            `json:"updated_at"`
	Source    string                `json:"source"`
	Items     []models.CurrentEntry `json:"items"`
}

// SessionView is one presence session of a term.
type SessionView struct {
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at"`
	Open     bool       `json:"open"`
}

// TermResponse is the body of GET /api/v1/terms/:text.
type TermResponse struct {
	ID              uint          `json:"id"`
	Text            string        `json:"text"`
	OccurrenceCount int64         `json:"occurrence_count"`
	Sessions        []SessionView `json:"sessions"`
}

// HealthHandler reports whether storage is reachable and when the last tick committed.
func (a *API) HealthHandler(c *gin.Context) {
	last, err := a.store.LastTick(c.Request.Context())
	if err != nil {
		a.logger.WithError(models.NewErrorInfo(err, "database_error")).Error("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	body := gin.H{"status": "ok", "last_tick_at": nil}
	if last != nil {
		body["last_tick_at"] = last.TickTime.In(a.loc)
	}
	c.JSON(http.StatusOK, body)
}

// RankingsHandler ranks terms by presence time over a day, week or month.
func (a *API) RankingsHandler(c *gin.Context) {
	now := a.clock()

	p, err := period.ParsePeriod(c.Query("period"))
	if err != nil {
		a.fail(c, err)
		return
	}
	date := c.Query("date")
	if date == "" {
		date = now.In(a.loc).Format(period.DateLayout)
	}
	anchor, err := period.ParseAnchor(date, a.loc)
	if err != nil {
		a.fail(c, err)
		return
	}
	limit := a.aggregator.DefaultTopK()
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			a.fail(c, fmt.Errorf("%w: limit must be an integer", models.ErrInvalidQuery))
			return
		}
	}

	window, err := period.Resolve(p, anchor)
	if err != nil {
		a.fail(c, err)
		return
	}
	items, err := a.aggregator.Rank(c.Request.Context(), window, limit, now)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RankingResponse{
		Period: window.Period,
		Title:  window.Title(),
		Start:  window.Start,
		End:    window.End,
		Items:  items,
	})
}

// CurrentHandler returns the latest snapshot order, from Redis when possible.
func (a *API) CurrentHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if a.cache != nil {
		snap, ok, err := a.cache.Get(ctx)
		switch {
		case err != nil:
			a.logger.WithError(models.NewErrorInfo(err, "cache_error")).Warn("current ranking cache unavailable, reading store")
		case ok:
			updated := snap.UpdatedAt.In(a.loc)
			c.JSON(http.StatusOK, CurrentResponse{UpdatedAt: &updated, Source: "cache", Items: snap.Items})
			return
		}
	}

	items, err := a.store.CurrentRanking(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	last, err := a.store.LastTick(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	resp := CurrentResponse{Source: "store", Items: items}
	if resp.Items == nil {
		resp.Items = []models.CurrentEntry{}
	}
	if last != nil && len(items) > 0 {
		updated := last.TickTime.In(a.loc)
		resp.UpdatedAt = &updated
	}
	c.JSON(http.StatusOK, resp)
}

// TermHandler returns a term's counter and its latest sessions.
func (a *API) TermHandler(c *gin.Context) {
	ctx := c.Request.Context()
	text := strings.TrimSpace(c.Param("text"))
	if text == "" {
		a.fail(c, fmt.Errorf("%w: term text is required", models.ErrInvalidQuery))
		return
	}
	term, err := a.registry.Lookup(ctx, a.store, text)
	if err != nil {
		a.fail(c, err)
		return
	}
	sessions, err := a.store.SessionsForTerm(ctx, term.ID, termHistoryLimit)
	if err != nil {
		a.fail(c, err)
		return
	}

	resp := TermResponse{ID: term.ID, Text: term.Text, OccurrenceCount: term.OccurrenceCount, Sessions: make([]SessionView, 0, len(sessions))}
	for _, s := range sessions {
		view := SessionView{OpenedAt: s.OpenedAt.In(a.loc), Open: s.IsOpen()}
		if s.ClosedAt != nil {
			closed := s.ClosedAt.In(a.loc)
			view.ClosedAt = &closed
		}
		resp.Sessions = append(resp.Sessions, view)
	}
	c.JSON(http.StatusOK, resp)
}

// ActiveTermsHandler lists terms on the board now or within ?since (default 48h),
// for the enrichment worker to look up.
func (a *API) ActiveTermsHandler(c *gin.Context) {
	span := defaultActiveSpan
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			a.fail(c, fmt.Errorf("%w: since must be a positive duration", models.ErrInvalidQuery))
			return
		}
		span = d
	}
	terms, err := a.store.ActiveTerms(c.Request.Context(), a.clock().Add(-span))
	if err != nil {
		a.fail(c, err)
		return
	}
	items := make([]gin.H, 0, len(terms))
	for _, t := range terms {
		items = append(items, gin.H{"id": t.ID, "text": t.Text})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// fail maps domain errors to status codes. Only 5xx responses are logged here;
// the request logger covers the rest.
func (a *API) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		a.logger.WithError(models.NewErrorInfo(err, "database_error")).
			WithRequest(models.RequestInfo{Method: c.Request.Method, Path: c.Request.URL.Path}).
			Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
