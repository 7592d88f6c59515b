package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/testutil"
	"TrendWatch/backend/go/internal/trend_service/aggregator"
	"TrendWatch/backend/go/internal/trend_service/cache"
	"TrendWatch/backend/go/internal/trend_service/store"
	"TrendWatch/backend/go/internal/trend_service/tracker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	router *gin.Engine
	store  *store.Store
	cache  *cache.CurrentCache
}

func newEnv(t *testing.T, withCache bool) *env {
	t.Helper()
	s := store.NewStore(testutil.NewDB(t))
	agg := aggregator.New(s, aggregator.Options{
		Quantizer:   aggregator.Quantizer{Bucket: 2 * time.Minute, Enabled: true},
		DefaultTopK: 20,
		MaxTopK:     50,
	})

	var (
		cc      *cache.CurrentCache
		current CurrentReader
		notify  []tracker.Notifier
	)
	if withCache {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		cc = cache.NewCurrentCache(rdb, "trends:current", time.Hour)
		current = cc
		notify = append(notify, cc)
	}

	tr := tracker.New(s, nil, nil, notify...)
	t0 := testutil.At(t, "2024-06-13 10:00:00")
	for i, snap := range [][]string{{"A", "B", "C"}, {"B", "C", "D"}, {"B", "C", "D"}} {
		_, err := tr.Ingest(context.Background(), snap, t0.Add(time.Duration(i)*2*time.Minute))
		require.NoError(t, err)
	}

	a := NewAPI(s, agg, current, time.UTC, nil)
	a.clock = func() time.Time { return testutil.At(t, "2024-06-13 10:06:00") }
	return &env{router: NewRouter(a, nil), store: s, cache: cc}
}

func (e *env) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestRankingsDefaultsToToday(t *testing.T) {
	e := newEnv(t, false)
	var resp RankingResponse
	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/rankings", &resp))

	assert.Equal(t, "day", string(resp.Period))
	assert.Equal(t, "2024-06-13 daily", resp.Title)
	require.Len(t, resp.Items, 4)

	// B and C: open since 10:00, now 10:06 -> 3 buckets + 1.
	assert.Equal(t, "B", resp.Items[0].Term)
	assert.EqualValues(t, 480, resp.Items[0].CoveredSeconds)
	assert.Equal(t, []int{1, 1, 3, 4}, []int{resp.Items[0].Rank, resp.Items[1].Rank, resp.Items[2].Rank, resp.Items[3].Rank})
	// D is open since 10:02 (2 buckets + 1); A closed after one bucket (1 + 1).
	assert.Equal(t, "D", resp.Items[2].Term)
	assert.EqualValues(t, 360, resp.Items[2].CoveredSeconds)
	assert.Equal(t, "A", resp.Items[3].Term)
	assert.EqualValues(t, 240, resp.Items[3].CoveredSeconds)
}

func TestRankingsWeekAndLimit(t *testing.T) {
	e := newEnv(t, false)
	var resp RankingResponse
	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/rankings?period=weekly&date=2024-06-13&limit=1", &resp))
	assert.Equal(t, "06/10 ~ 06/16 weekly", resp.Title)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "B", resp.Items[0].Term)
}

func TestRankingsRejectsBadInput(t *testing.T) {
	e := newEnv(t, false)
	for _, q := range []string{"period=year", "date=13-06-2024", "limit=abc", "limit=0", "limit=51"} {
		assert.Equal(t, http.StatusBadRequest, e.get(t, "/api/v1/rankings?"+q, nil), q)
	}
}

func TestCurrentFromStore(t *testing.T) {
	e := newEnv(t, false)
	var resp CurrentResponse
	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/rankings/current", &resp))
	assert.Equal(t, "store", resp.Source)
	require.NotNil(t, resp.UpdatedAt)
	assert.True(t, resp.UpdatedAt.Equal(testutil.At(t, "2024-06-13 10:04:00")))
	assert.Equal(t, []models.CurrentEntry{
		{Position: 1, TermID: 2, Term: "B"},
		{Position: 2, TermID: 3, Term: "C"},
		{Position: 3, TermID: 4, Term: "D"},
	}, resp.Items)
}

func TestCurrentFromCache(t *testing.T) {
	e := newEnv(t, true)
	var resp CurrentResponse
	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/rankings/current", &resp))
	assert.Equal(t, "cache", resp.Source)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "D", resp.Items[2].Term)

	require.NoError(t, e.cache.Invalidate(context.Background()))
	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/rankings/current", &resp))
	assert.Equal(t, "store", resp.Source, "a cache miss falls back to the store")
}

func TestTermHistory(t *testing.T) {
	e := newEnv(t, false)
	var resp TermResponse
	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/terms/A", &resp))
	assert.EqualValues(t, 1, resp.OccurrenceCount)
	require.Len(t, resp.Sessions, 1)
	assert.False(t, resp.Sessions[0].Open)
	require.NotNil(t, resp.Sessions[0].ClosedAt)
	assert.True(t, resp.Sessions[0].ClosedAt.Equal(testutil.At(t, "2024-06-13 10:02:00")))

	assert.Equal(t, http.StatusNotFound, e.get(t, "/api/v1/terms/"+url.PathEscape("no such term"), nil))
}

func TestTermHistoryWithSlashAndReservedText(t *testing.T) {
	e := newEnv(t, false)
	tr := tracker.New(e.store, nil, nil)
	_, err := tr.Ingest(context.Background(), []string{"AC/DC", "50% off"}, testutil.At(t, "2024-06-13 10:06:00"))
	require.NoError(t, err)

	for _, text := range []string{"AC/DC", "50% off"} {
		var resp TermResponse
		require.Equal(t, http.StatusOK, e.get(t, "/api/v1/terms/"+url.PathEscape(text), &resp), text)
		assert.Equal(t, text, resp.Text)
		require.Len(t, resp.Sessions, 1)
		assert.True(t, resp.Sessions[0].Open)
	}

	assert.Equal(t, http.StatusOK, e.get(t, "/api/v1/terms/B", nil), "plain paths still match")
}

func TestActiveTerms(t *testing.T) {
	e := newEnv(t, false)
	var resp struct {
		Items []struct {
			ID   uint   `json:"id"`
			Text string `json:"text"`
		} `json:"items"`
	}
	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/terms/active", &resp))
	require.Len(t, resp.Items, 4)
	assert.Equal(t, "A", resp.Items[0].Text)

	require.Equal(t, http.StatusOK, e.get(t, "/api/v1/terms/active?since=1m", &resp))
	assert.Len(t, resp.Items, 3, "A closed at 10:02, more than a minute before now")

	assert.Equal(t, http.StatusBadRequest, e.get(t, "/api/v1/terms/active?since=-5m", nil))
}

func TestHealth(t *testing.T) {
	e := newEnv(t, false)
	var resp map[string]interface{}
	require.Equal(t, http.StatusOK, e.get(t, "/healthz", &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "2024-06-13T10:04:00Z", resp["last_tick_at"])
}
