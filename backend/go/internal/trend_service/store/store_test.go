package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testutil.NewDB(t))
}

func TestTermLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.FindTermByText(ctx, "alpha")
	assert.ErrorIs(t, err, models.ErrNotFound)

	created, err := s.CreateTerm(ctx, "alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.OccurrenceCount)

	require.NoError(t, s.IncrementOccurrence(ctx, created.ID))
	require.NoError(t, s.IncrementOccurrence(ctx, created.ID))

	found, err := s.FindTermByText(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.EqualValues(t, 3, found.OccurrenceCount)

	err = s.IncrementOccurrence(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.CreateTerm(ctx, "alpha")
	assert.Error(t, err, "text is unique")
}

func TestSessionsOpenCloseAndOverlap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	a, _ := s.CreateTerm(ctx, "A")
	b, _ := s.CreateTerm(ctx, "B")
	sa, err := s.StartSession(ctx, a.ID, t0)
	require.NoError(t, err)
	_, err = s.StartSession(ctx, b.ID, t0.Add(2*time.Minute))
	require.NoError(t, err)

	open, err := s.OpenSessions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "A", open[0].Text)
	assert.True(t, open[0].OpenedAt.Equal(t0))

	require.NoError(t, s.CloseSessions(ctx, []uint{sa.ID}, t0.Add(4*time.Minute)))
	open, err = s.OpenSessions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "B", open[0].Text)

	// A closed at 10:04, so a window starting at 10:04 excludes it.
	overlap, err := s.SessionsOverlapping(ctx, t0.Add(4*time.Minute), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, overlap, 1)
	assert.Equal(t, b.ID, overlap[0].TermID)

	overlap, err = s.SessionsOverlapping(ctx, t0.Add(-time.Hour), t0)
	require.NoError(t, err)
	require.Len(t, overlap, 1)
	assert.Equal(t, a.ID, overlap[0].TermID)

	n, err := s.CloseAllOpen(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	history, err := s.SessionsForTerm(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].ClosedAt)
	assert.True(t, history[0].ClosedAt.Equal(t0.Add(4*time.Minute)))
}

func TestActiveTerms(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")

	old, _ := s.CreateTerm(ctx, "old")
	recent, _ := s.CreateTerm(ctx, "recent")
	live, _ := s.CreateTerm(ctx, "live")
	_, _ = s.CreateTerm(ctx, "never")

	so, _ := s.StartSession(ctx, old.ID, t0.Add(-72*time.Hour))
	require.NoError(t, s.CloseSessions(ctx, []uint{so.ID}, t0.Add(-71*time.Hour)))
	sr, _ := s.StartSession(ctx, recent.ID, t0.Add(-2*time.Hour))
	require.NoError(t, s.CloseSessions(ctx, []uint{sr.ID}, t0.Add(-time.Hour)))
	_, err := s.StartSession(ctx, live.ID, t0)
	require.NoError(t, err)

	terms, err := s.ActiveTerms(ctx, t0.Add(-48*time.Hour))
	require.NoError(t, err)
	var names []string
	for _, term := range terms {
		names = append(names, term.Text)
	}
	assert.Equal(t, []string{"live", "recent"}, names)
}

func TestReplaceCurrentRanking(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, _ := s.CreateTerm(ctx, "A")
	b, _ := s.CreateTerm(ctx, "B")

	require.NoError(t, s.ReplaceCurrentRanking(ctx, []models.CurrentRanking{{Position: 1, TermID: a.ID}, {Position: 2, TermID: b.ID}}))
	require.NoError(t, s.ReplaceCurrentRanking(ctx, []models.CurrentRanking{{Position: 1, TermID: b.ID}}))

	rows, err := s.CurrentRanking(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CurrentEntry{{Position: 1, TermID: b.ID, Term: "B"}}, rows)

	require.NoError(t, s.ClearCurrentRanking(ctx))
	rows, err = s.CurrentRanking(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAddExplanationIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, _ := s.CreateTerm(ctx, "A")
	b, _ := s.CreateTerm(ctx, "B")
	now := testutil.At(t, "2024-06-13 10:00:00")

	inserted, err := s.AddExplanation(ctx, &models.Explanation{TermID: a.ID, Link: "https://x/1", Title: "first", ObservedAt: now})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.AddExplanation(ctx, &models.Explanation{TermID: a.ID, Link: "https://x/1", Title: "again", ObservedAt: now})
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = s.AddExplanation(ctx, &models.Explanation{TermID: a.ID, Link: "https://x/2", Title: "second", ObservedAt: now})
	require.NoError(t, err)

	latest, err := s.LatestExplanations(ctx, []uint{a.ID, b.ID})
	require.NoError(t, err)
	require.Contains(t, latest, a.ID)
	assert.NotContains(t, latest, b.ID)
	assert.Equal(t, "https://x/2", latest[a.ID].Link, "ties on created_at fall back to the newest id")
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.CreateTerm(ctx, "ghost"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindTermByText(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLastTick(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tick, err := s.LastTick(ctx)
	require.NoError(t, err)
	assert.Nil(t, tick)

	t0 := testutil.At(t, "2024-06-13 10:00:00")
	require.NoError(t, s.RecordTick(ctx, &models.Tick{TickTime: t0, Terms: []byte(`["A"]`), Opened: 1}))
	require.NoError(t, s.RecordTick(ctx, &models.Tick{TickTime: t0.Add(2 * time.Minute), Terms: []byte(`["A","B"]`), Opened: 1}))

	tick, err = s.LastTick(ctx)
	require.NoError(t, err)
	require.NotNil(t, tick)
	assert.True(t, tick.TickTime.Equal(t0.Add(2*time.Minute)))
	assert.JSONEq(t, `["A","B"]`, string(tick.Terms))
}

func TestForUpdateIsReusable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := testutil.At(t, "2024-06-13 10:00:00")
	a, _ := s.CreateTerm(ctx, "A")
	b, _ := s.CreateTerm(ctx, "B")
	_, _ = s.StartSession(ctx, a.ID, t0)
	_, _ = s.StartSession(ctx, b.ID, t0)
	require.NoError(t, s.RecordTick(ctx, &models.Tick{TickTime: t0, Terms: []byte(`["A","B"]`), Opened: 2}))

	err := s.Transaction(ctx, func(tx *Store) error {
		locked := tx.ForUpdate()
		tick, err := locked.LastTick(ctx)
		require.NoError(t, err)
		require.NotNil(t, tick)

		open, err := locked.OpenSessions(ctx)
		require.NoError(t, err)
		assert.Len(t, open, 2, "the LIMIT of the previous read does not leak")
		return nil
	})
	require.NoError(t, err)
}

func TestNormalize(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	in := time.Date(2024, 6, 13, 19, 0, 0, 500, loc)
	out := Normalize(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.True(t, out.Equal(time.Date(2024, 6, 13, 10, 0, 0, 0, time.UTC)))
}
