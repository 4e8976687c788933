package pos

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange bounds sale timestamps. Both ends are inclusive; a nil end is
// unbounded.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// ParseDateRange reads optional bounds in YYYY-MM-DD or RFC3339 form. A
// date-only end covers the whole day. Empty strings mean no bound.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if s := strings.TrimSpace(start); s != "" {
		t, _, err := parseBound(s)
		if err != nil {
			return r, invalid("start_date", "expected YYYY-MM-DD or RFC3339")
		}
		r.Start = &t
	}
	if s := strings.TrimSpace(end); s != "" {
		t, dateOnly, err := parseBound(s)
		if err != nil {
			return r, invalid("end_date", "expected YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			// timestamptz resolution
			t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
		r.End = &t
	}
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return r, invalid("date range", "start_date is after end_date")
	}
	return r, nil
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded on both ends.
func (r DateRange) IsZero() bool { return r.Start == nil && r.End == nil }

// where renders the SQL filter for the range against column col, numbering
// placeholders from next.
func (r DateRange) where(col string, next int) (string, []any) {
	switch {
	case r.Start != nil && r.End != nil:
		return fmt.Sprintf(" WHERE %s BETWEEN $%d AND $%d", col, next, next+1), []any{*r.Start, *r.End}
	case r.Start != nil:
		return fmt.Sprintf(" WHERE %s >= $%d", col, next), []any{*r.Start}
	case r.End != nil:
		return fmt.Sprintf(" WHERE %s <= $%d", col, next), []any{*r.End}
	}
	return "", nil
}
