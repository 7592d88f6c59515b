// Package period maps a coarse period selector and an anchor date to a
// concrete closed time window.
package period

import (
	"fmt"
	"strings"
	"time"

	"TrendWatch/backend/go/internal/models"
)

// Period is a coarse window selector.
type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

// DateLayout is the anchor date format accepted by ParseAnchor.
const DateLayout = "2006-01-02"

// Window is a closed interval [Start, End]. End is the last included second.
type Window struct {
	Period Period    `json:"period"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Validate rejects zero or inverted windows.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: window bounds must be set", models.ErrInvalidQuery)
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: window end %s is before start %s", models.ErrInvalidQuery,
			w.End.Format(time.DateTime), w.Start.Format(time.DateTime))
	}
	return nil
}

// Title renders the heading used by the list views.
func (w Window) Title() string {
	switch w.Period {
	case Day:
		return w.Start.Format(DateLayout) + " daily"
	case Week:
		return w.Start.Format("01/02") + " ~ " + w.End.Format("01/02") + " weekly"
	case Month:
		return w.Start.Format("2006-01") + " monthly"
	default:
		return w.Start.Format(time.DateTime) + " ~ " + w.End.Format(time.DateTime)
	}
}

// ParsePeriod accepts day/week/month and their legacy daily/weekly/monthly forms.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day", "daily":
		return Day, nil
	case "week", "weekly":
		return Week, nil
	case "month", "monthly":
		return Month, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", models.ErrInvalidQuery, s)
	}
}

// ParseAnchor parses a YYYY-MM-DD date at midnight in loc.
func ParseAnchor(s string, loc *time.Location) (time.Time, error) {
	anchor, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", models.ErrInvalidQuery, s)
	}
	return anchor, nil
}

// Resolve returns the window for p containing anchor, in anchor's location.
//
// day covers the anchor date, week runs Monday through Sunday, month runs from
// the 1st through the last calendar day. End is always 23:59:59 of the last day.
func Resolve(p Period, anchor time.Time) (Window, error) {
	loc := anchor.Location()
	y, m, d := anchor.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var first, last time.Time
	switch p {
	case Day:
		first, last = midnight, midnight
	case Week:
		// time.Weekday has Sunday=0; shift so Monday=0.
		offset := (int(midnight.Weekday()) + 6) % 7
		first = midnight.AddDate(0, 0, -offset)
		last = first.AddDate(0, 0, 6)
	case Month:
		first = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		last = time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	default:
		return Window{}, fmt.Errorf("%w: unknown period %q", models.ErrInvalidQuery, p)
	}

	ly, lm, ld := last.Date()
	return Window{
		Period: p,
		Start:  first,
		End:    time.Date(ly, lm, ld, 23, 59, 59, 0, loc),
	}, nil
}
