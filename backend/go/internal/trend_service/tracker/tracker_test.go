package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/testutil"
	"TrendWatch/backend/go/internal/trend_service/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	results []models.TickResult
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, result models.TickResult) error {
	r.results = append(r.results, result)
	return r.err
}

func newTracker(t *testing.T, notifiers ...Notifier) (*Tracker, *store.Store) {
	t.Helper()
	s := store.NewStore(testutil.NewDB(t))
	return New(s, nil, nil, notifiers...), s
}

// sessionsByTerm returns every session keyed by term text, oldest first.
func sessionsByTerm(t *testing.T, s *store.Store) map[string][]models.Session {
	t.Helper()
	var rows []struct {
		models.Session
		Text string
	}
	err := s.DB.Table("presence_sessions AS s").
		Select("s.*, t.text AS text").
		Joins("JOIN terms AS t ON t.id = s.term_id").
		Order("s.id").
		Scan(&rows).Error
	require.NoError(t, err)

	out := make(map[string][]models.Session)
	for _, r := range rows {
		out[r.Text] = append(out[r.Text], r.Session)
	}
	return out
}

func count(t *testing.T, s *store.Store, text string) int64 {
	t.Helper()
	term, err := s.FindTermByText(context.Background(), text)
	require.NoError(t, err)
	return term.OccurrenceCount
}

func TestIngestOpensContinuesAndCloses(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	_, err := tr.Ingest(ctx, []string{"A", "B", "C"}, t0)
	require.NoError(t, err)
	res, err := tr.Ingest(ctx, []string{"B", "C", "D"}, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, res.Opened)
	assert.Equal(t, []string{"A"}, res.Closed)
	assert.Equal(t, []string{"B", "C"}, res.Continued)

	res, err = tr.Ingest(ctx, []string{"B", "C", "D"}, t0.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, res.Opened)
	assert.Empty(t, res.Closed)

	sessions := sessionsByTerm(t, s)
	require.Len(t, sessions["A"], 1)
	require.NotNil(t, sessions["A"][0].ClosedAt)
	assert.True(t, sessions["A"][0].OpenedAt.Equal(t0))
	assert.True(t, sessions["A"][0].ClosedAt.Equal(t0.Add(2*time.Minute)), "closed at the tick that detected absence")

	for _, text := range []string{"B", "C"} {
		require.Len(t, sessions[text], 1, text)
		assert.True(t, sessions[text][0].IsOpen(), text)
		assert.True(t, sessions[text][0].OpenedAt.Equal(t0), text)
	}
	require.Len(t, sessions["D"], 1)
	assert.True(t, sessions["D"][0].IsOpen())
	assert.True(t, sessions["D"][0].OpenedAt.Equal(t0.Add(2*time.Minute)))

	assert.EqualValues(t, 1, count(t, s, "A"))
	assert.EqualValues(t, 3, count(t, s, "B"))
	assert.EqualValues(t, 2, count(t, s, "D"))

	current, err := s.CurrentRanking(ctx)
	require.NoError(t, err)
	require.Len(t, current, 3)
	assert.Equal(t, "B", current[0].Term)
	assert.Equal(t, 1, current[0].Position)
	assert.Equal(t, "D", current[2].Term)
}

func TestIngestReopensReturningTerm(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	for i, snap := range [][]string{{"A"}, {"B"}, {"B"}, {"A", "B"}} {
		_, err := tr.Ingest(ctx, snap, t0.Add(time.Duration(i)*2*time.Minute))
		require.NoError(t, err)
	}

	sessions := sessionsByTerm(t, s)
	require.Len(t, sessions["A"], 2)
	assert.True(t, sessions["A"][0].ClosedAt.Equal(t0.Add(2*time.Minute)))
	assert.True(t, sessions["A"][1].IsOpen())
	assert.True(t, sessions["A"][1].OpenedAt.Equal(t0.Add(6*time.Minute)))

	open, err := s.OpenSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2, "every term in the latest snapshot has exactly one open session")
	assert.EqualValues(t, 2, count(t, s, "A"))
}

func TestIngestRejectsBadSnapshots(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	_, err := tr.Ingest(ctx, nil, t0)
	assert.ErrorIs(t, err, models.ErrEmptySnapshot)
	_, err = tr.Ingest(ctx, []string{"A", " "}, t0)
	assert.ErrorIs(t, err, models.ErrEmptySnapshot)
	_, err = tr.Ingest(ctx, []string{"A", "B", "A"}, t0)
	assert.ErrorIs(t, err, models.ErrDuplicateTerm)

	_, err = s.FindTermByText(ctx, "A")
	assert.ErrorIs(t, err, models.ErrNotFound, "rejected snapshots never touch storage")
}

func TestIngestRejectsStaleTick(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	_, err := tr.Ingest(ctx, []string{"A"}, t0)
	require.NoError(t, err)
	_, err = tr.Ingest(ctx, []string{"A"}, t0)
	assert.ErrorIs(t, err, models.ErrStaleTick)
	assert.EqualValues(t, 1, count(t, s, "A"))
}

func TestIngestFailsOnMultipleOpenSessions(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	a, err := s.CreateTerm(ctx, "A")
	require.NoError(t, err)
	_, err = s.StartSession(ctx, a.ID, t0)
	require.NoError(t, err)
	_, err = s.StartSession(ctx, a.ID, t0.Add(time.Minute))
	require.NoError(t, err)

	_, err = tr.Ingest(ctx, []string{"A"}, t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, models.ErrIntegrity)
	assert.EqualValues(t, 1, count(t, s, "A"))
}

func TestIngestIsAtomic(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	_, err := tr.Ingest(ctx, []string{"A", "B"}, t0)
	require.NoError(t, err)

	diskFull := errors.New("disk full")
	err = s.DB.Callback().Create().Before("gorm:create").Register("test:fail_sessions", func(db *gorm.DB) {
		if db.Statement.Schema != nil && db.Statement.Schema.Table == "presence_sessions" {
			_ = db.AddError(diskFull)
		}
	})
	require.NoError(t, err)

	_, err = tr.Ingest(ctx, []string{"A", "C"}, t0.Add(2*time.Minute))
	require.ErrorIs(t, err, diskFull)

	assert.EqualValues(t, 1, count(t, s, "A"), "counter update rolled back")
	_, err = s.FindTermByText(ctx, "C")
	assert.ErrorIs(t, err, models.ErrNotFound, "term creation rolled back")

	open, err := s.OpenSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2, "B was not closed")

	current, err := s.CurrentRanking(ctx)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, "B", current[1].Term)

	last, err := s.LastTick(ctx)
	require.NoError(t, err)
	assert.True(t, last.TickTime.Equal(t0))
}

func TestIngestNotifiesAfterCommit(t *testing.T) {
	ctx := context.Background()
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("redis down")}
	tr, _ := newTracker(t, failing, ok)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	res, err := tr.Ingest(ctx, []string{"A", "B"}, t0)
	require.NoError(t, err, "notifier failures do not fail the tick")

	require.Len(t, ok.results, 1)
	require.Len(t, failing.results, 1)
	assert.Equal(t, *res, ok.results[0])
	assert.Equal(t, []string{"A", "B"}, ok.results[0].Opened)
	assert.Len(t, ok.results[0].Ranking, 2)

	_, err = tr.Ingest(ctx, nil, t0.Add(2*time.Minute))
	require.Error(t, err)
	assert.Len(t, ok.results, 1, "rejected ticks are not announced")
}

func TestRecoverClosesDanglingSessions(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	_, err := tr.Ingest(ctx, []string{"A", "B"}, t0)
	require.NoError(t, err)

	restart := t0.Add(30 * time.Minute)
	n, err := tr.Recover(ctx, restart)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	open, err := s.OpenSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
	current, err := s.CurrentRanking(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	res, err := tr.Ingest(ctx, []string{"A"}, restart.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Opened)

	n, err = tr.Recover(ctx, restart.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestIngestLocksTickAndSessionReads(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")
	_, err := tr.Ingest(ctx, []string{"A"}, t0)
	require.NoError(t, err)

	var locked []string
	capture := func(db *gorm.DB) {
		if _, ok := db.Statement.Clauses["FOR"]; ok {
			locked = append(locked, db.Statement.SQL.String())
		}
	}
	require.NoError(t, s.DB.Callback().Query().After("gorm:query").Register("test:capture_query", capture))
	require.NoError(t, s.DB.Callback().Row().After("gorm:row").Register("test:capture_row", capture))

	_, err = tr.Ingest(ctx, []string{"A", "B"}, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, locked, 2, "last tick and open sessions are read with a row lock")
	assert.Contains(t, locked[0], "ingest_ticks")
	assert.Contains(t, locked[1], "presence_sessions")
}
