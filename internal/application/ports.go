package application

import (
	"context"
	"time"

	"bcchrates-service/internal/domain"
)

// RateSource fetches one provider series. Implementations must not retry.
type RateSource interface {
	FetchSeries(ctx context.Context, seriesID string, start, end time.Time) ([]domain.Observation, error)
}

type RateRepo interface {
	UpsertDailyRate(ctx context.Context, r domain.DailyRate) (domain.UpsertOutcome, error)
	FindDailyRate(ctx context.Context, date time.Time, pair domain.Pair) (domain.DailyRate, error)
	// ListDailyRates returns rows ascending by date.
	ListDailyRates(ctx context.Context, pair domain.Pair, q domain.RateQuery) ([]domain.DailyRate, error)
	// FindLatestBefore returns the row with the greatest date strictly before the given date.
	FindLatestBefore(ctx context.Context, pair domain.Pair, before time.Time) (domain.DailyRate, error)
	ListDistinctPairs(ctx context.Context, f domain.PeriodFilter) ([]domain.Pair, error)
	ListPeriods(ctx context.Context, pair domain.Pair, f domain.PeriodFilter) ([]domain.Period, error)
	// AggregateStats only considers PROVIDER rows.
	AggregateStats(ctx context.Context, pair domain.Pair, p domain.Period) (domain.RateStats, error)
}

type AggregateRepo interface {
	UpsertMonthlyAggregate(ctx context.Context, a domain.MonthlyAggregate) (domain.UpsertOutcome, error)
	ListMonthlyAggregates(ctx context.Context, f domain.PeriodFilter) ([]domain.MonthlyAggregate, error)
}

// Notifier receives the outcome of scheduled runs.
type Notifier interface {
	NotifySuccess(ctx context.Context, r SuccessReport) error
	NotifyFailure(ctx context.Context, r FailureReport) error
}

// RunLock is an optional cross-process guard around sync runs.
type RunLock interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// NoopLock always grants the lock; used for single-instance deployments.
type NoopLock struct{}

func (NoopLock) TryAcquire(context.Context, string) (bool, error) { return true, nil }
func (NoopLock) Release(context.Context, string) error            { return nil }

// Recorder observes sync activity; the metrics adapter implements it.
type Recorder interface {
	Observation(pair string, outcome string)
	PairFailed(pair string)
}

type nopRecorder struct{}

func (nopRecorder) Observation(string, string) {}
func (nopRecorder) PairFailed(string)          {}
