package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period { return Period{Year: t.Year(), Month: t.Month()} }

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

func (p Period) Start() time.Time { return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC) }

// End is the first day of the following month (exclusive bound).
func (p Period) End() time.Time { return p.Start().AddDate(0, 1, 0) }

func (p Period) Next() Period { return PeriodOf(p.End()) }

func (p Period) Before(o Period) bool {
	return p.Year < o.Year || (p.Year == o.Year && p.Month < o.Month)
}

// PeriodFilter optionally restricts queries to a year and/or month.
type PeriodFilter struct {
	Year  *int
	Month *int
}

func (f PeriodFilter) Matches(t time.Time) bool {
	if f.Year != nil && t.Year() != *f.Year {
		return false
	}
	if f.Month != nil && int(t.Month()) != *f.Month {
		return false
	}
	return true
}

func (f PeriodFilter) Validate() error {
	if f.Month != nil && (*f.Month < 1 || *f.Month > 12) {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidRange, *f.Month)
	}
	if f.Year != nil && (*f.Year < 1900 || *f.Year > 9999) {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidRange, *f.Year)
	}
	return nil
}

// RateStats summarises provider rows of one pair in one period.
type RateStats struct {
	Avg   decimal.Decimal
	Min   decimal.Decimal
	Max   decimal.Decimal
	Count int
}

type MonthlyAggregate struct {
	Pair         Pair
	Period       Period
	AvgRate      decimal.Decimal
	MinRate      decimal.Decimal
	MaxRate      decimal.Decimal
	DataPoints   int
	CalculatedAt time.Time
}
