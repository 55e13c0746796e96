package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bcchrates-service/internal/domain"
)

const (
	DefaultListLimit = 100
	DefaultMaxLimit  = 1000
)

// QueryService serves the read-only views over stored rates.
type QueryService struct {
	rates    RateRepo
	aggs     AggregateRepo
	maxLimit int
	settings
}

func NewQueryService(rates RateRepo, aggs AggregateRepo, maxLimit int, opts ...Option) *QueryService {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &QueryService{rates: rates, aggs: aggs, maxLimit: maxLimit, settings: newSettings(opts)}
}

// RateLookup is the answer of a fallback lookup.
type RateLookup struct {
	RequestedDate time.Time
	Rate          domain.DailyRate
	IsFallback    bool
}

// ListRates returns rates of a pair ascending by date. Zero bounds are open.
func (q *QueryService) ListRates(ctx context.Context, pair domain.Pair, from, to time.Time, limit int) ([]domain.DailyRate, error) {
	if !pair.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, pair)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: to before from", domain.ErrInvalidRange)
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > q.maxLimit:
		limit = q.maxLimit
	}
	rq := domain.RateQuery{Limit: limit}
	if !from.IsZero() {
		rq.From = domain.Day(from)
	}
	if !to.IsZero() {
		rq.To = domain.Day(to)
	}
	return q.rates.ListDailyRates(ctx, pair, rq)
}

// LatestRate returns the most recent row of the pair up to today.
func (q *QueryService) LatestRate(ctx context.Context, pair domain.Pair) (domain.DailyRate, error) {
	return q.rates.FindLatestBefore(ctx, pair, q.today().AddDate(0, 0, 1))
}

// LatestRates returns the most recent row of every stored pair.
func (q *QueryService) LatestRates(ctx context.Context) ([]domain.DailyRate, error) {
	pairs, err := q.rates.ListDistinctPairs(ctx, domain.PeriodFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.DailyRate, 0, len(pairs))
	for _, p := range pairs {
		r, err := q.LatestRate(ctx, p)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (q *QueryService) MonthlyAggregates(ctx context.Context, f domain.PeriodFilter) ([]domain.MonthlyAggregate, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return q.aggs.ListMonthlyAggregates(ctx, f)
}

// RateWithFallback returns the rate of the exact date, or the closest earlier
// one flagged as a fallback. ErrNotFound when nothing exists on or before date.
func (q *QueryService) RateWithFallback(ctx context.Context, pair domain.Pair, date time.Time) (RateLookup, error) {
	day := domain.Day(date)
	out := RateLookup{RequestedDate: day}
	r, err := q.rates.FindDailyRate(ctx, day, pair)
	if err == nil {
		out.Rate = r
		return out, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return out, err
	}
	r, err = q.rates.FindLatestBefore(ctx, pair, day)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return out, fmt.Errorf("no %s rate on or before %s: %w", pair, day.Format(domain.DateLayout), domain.ErrNotFound)
		}
		return out, err
	}
	out.Rate = r
	out.IsFallback = true
	return out, nil
}
