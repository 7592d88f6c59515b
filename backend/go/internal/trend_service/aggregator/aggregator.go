// Package aggregator turns presence sessions into a tie-aware ranking of terms
// for a closed time window.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/trend_service/period"
	"TrendWatch/backend/go/internal/trend_service/store"
)

// Options configures an Aggregator.
type Options struct {
	Quantizer   Quantizer
	DefaultTopK int
	MaxTopK     int
}

// Aggregator ranks terms by how long they were present in a window.
// It only reads committed state.
type Aggregator struct {
	store *store.Store
	opts  Options
}

// New returns an Aggregator. Zero top-k values fall back to 20 and 100.
func New(s *store.Store, opts Options) *Aggregator {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 20
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 100
	}
	if opts.MaxTopK < opts.DefaultTopK {
		opts.MaxTopK = opts.DefaultTopK
	}
	return &Aggregator{store: s, opts: opts}
}

// DefaultTopK is the limit used when a caller does not pick one.
func (a *Aggregator) DefaultTopK() int { return a.opts.DefaultTopK }

// MaxTopK is the largest accepted limit.
func (a *Aggregator) MaxTopK() int { return a.opts.MaxTopK }

type tally struct {
	termID  uint
	covered int64
	hits    int64
}

// Rank returns at most topK terms ordered by covered seconds.
//
// Open sessions are counted up to now. Equal covered values share a rank and the
// next smaller value takes its 1-indexed position. Rows past topK are dropped
// after ranking, so a tie straddling the limit is cut.
func (a *Aggregator) Rank(ctx context.Context, w period.Window, topK int, now time.Time) ([]models.RankedTerm, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 || topK > a.opts.MaxTopK {
		return nil, fmt.Errorf("%w: top_k must be within 1..%d, got %d", models.ErrInvalidQuery, a.opts.MaxTopK, topK)
	}
	if now.IsZero() {
		return nil, fmt.Errorf("%w: now must be set", models.ErrInvalidQuery)
	}
	if err := a.opts.Quantizer.Validate(); err != nil {
		return nil, err
	}

	sessions, err := a.store.SessionsOverlapping(ctx, w.Start, w.End)
	if err != nil {
		return nil, err
	}

	byTerm := make(map[uint]*tally)
	for _, s := range sessions {
		overlap, ok := Coverage(s, w, now)
		if !ok {
			continue
		}
		covered, hits := a.opts.Quantizer.Measure(overlap)
		t := byTerm[s.TermID]
		if t == nil {
			t = &tally{termID: s.TermID}
			byTerm[s.TermID] = t
		}
		t.covered += covered
		t.hits += hits
	}
	if len(byTerm) == 0 {
		return []models.RankedTerm{}, nil
	}

	ids := make([]uint, 0, len(byTerm))
	for id := range byTerm {
		ids = append(ids, id)
	}
	terms, err := a.store.TermsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	rows := make([]models.RankedTerm, 0, len(byTerm))
	for _, t := range byTerm {
		term, ok := terms[t.termID]
		if !ok {
			return nil, fmt.Errorf("%w: session references missing term #%d", models.ErrIntegrity, t.termID)
		}
		rows = append(rows, models.RankedTerm{
			TermID:         t.termID,
			Term:           term.Text,
			CoveredSeconds: t.covered,
			Hits:           t.hits,
			Duration:       FormatDuration(t.covered),
		})
	}

	SortRows(rows)
	AssignRanks(rows)
	if len(rows) > topK {
		rows = rows[:topK]
	}

	if err := a.attachLinks(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *Aggregator) attachLinks(ctx context.Context, rows []models.RankedTerm) error {
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.TermID
	}
	links, err := a.store.LatestExplanations(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		if e, ok := links[rows[i].TermID]; ok {
			rows[i].Link = e.Link
			rows[i].LinkTitle = e.Title
		}
	}
	return nil
}

// Coverage returns how much of s falls inside w, treating an open session as
// ending at now. w.End names the last second of the window, so the window
// runs until w.End+1s. ok is false when the session does not intersect w;
// a session closed exactly at w.Start ended before the window began.
func Coverage(s models.Session, w period.Window, now time.Time) (time.Duration, bool) {
	if s.ClosedAt != nil && !s.ClosedAt.After(w.Start) {
		return 0, false
	}
	open := s.OpenedAt
	if open.Before(w.Start) {
		open = w.Start
	}
	end := now
	if s.ClosedAt != nil {
		end = *s.ClosedAt
	}
	if limit := w.End.Add(time.Second); end.After(limit) {
		end = limit
	}
	if end.Before(open) {
		return 0, false
	}
	return end.Sub(open), true
}

// SortRows orders by covered seconds descending, then text, then id.
func SortRows(rows []models.RankedTerm) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CoveredSeconds != rows[j].CoveredSeconds {
			return rows[i].CoveredSeconds > rows[j].CoveredSeconds
		}
		if rows[i].Term != rows[j].Term {
			return rows[i].Term < rows[j].Term
		}
		return rows[i].TermID < rows[j].TermID
	})
}

// AssignRanks applies competition ranking to rows already sorted by SortRows.
// Each row is compared with its predecessor only.
func AssignRanks(rows []models.RankedTerm) {
	for i := range rows {
		if i > 0 && rows[i].CoveredSeconds == rows[i-1].CoveredSeconds {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
}
