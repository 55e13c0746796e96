package domain

import (
	"fmt"
	"time"
)

const (
	DateLayout         = "2006-01-02"
	ProviderDateLayout = "02-01-2006"
)

// Day truncates t to a calendar date at UTC midnight, keeping the wall-clock
// date of t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidRange, s)
	}
	return t, nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return r, nil
}

func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Periods lists the calendar months touched by the range, in order.
func (r DateRange) Periods() []Period {
	var out []Period
	cur := PeriodOf(r.Start)
	last := PeriodOf(r.End)
	for !last.Before(cur) {
		out = append(out, cur)
		cur = cur.Next()
	}
	return out
}
