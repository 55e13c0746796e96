package application

import (
	"context"
	"fmt"
	"time"

	"bcchrates-service/internal/domain"

	"go.uber.org/zap"
)

// Aggregator maintains monthly avg/min/max/count over provider rates.
// Periods without provider rows are skipped and existing aggregates for them
// are left in place.
type Aggregator struct {
	rates RateRepo
	aggs  AggregateRepo
	settings
}

func NewAggregator(rates RateRepo, aggs AggregateRepo, opts ...Option) *Aggregator {
	return &Aggregator{rates: rates, aggs: aggs, settings: newSettings(opts)}
}

func (a *Aggregator) Recompute(ctx context.Context, f domain.PeriodFilter) (AggregateStats, error) {
	var stats AggregateStats
	if err := f.Validate(); err != nil {
		return stats, err
	}
	pairs, err := a.rates.ListDistinctPairs(ctx, f)
	if err != nil {
		return stats, fmt.Errorf("list pairs: %w", err)
	}
	for _, pair := range pairs {
		periods, err := a.rates.ListPeriods(ctx, pair, f)
		if err != nil {
			return stats, fmt.Errorf("list periods %s: %w", pair, err)
		}
		upserted := 0
		for _, p := range periods {
			s, err := a.rates.AggregateStats(ctx, pair, p)
			if err != nil {
				return stats, fmt.Errorf("stats %s %s: %w", pair, p, err)
			}
			if s.Count == 0 {
				continue
			}
			outcome, err := a.aggs.UpsertMonthlyAggregate(ctx, domain.MonthlyAggregate{
				Pair:         pair,
				Period:       p,
				AvgRate:      s.Avg.Round(domain.RatePrecision),
				MinRate:      s.Min,
				MaxRate:      s.Max,
				DataPoints:   s.Count,
				CalculatedAt: a.clock.Now().UTC(),
			})
			if err != nil {
				return stats, fmt.Errorf("upsert aggregate %s %s: %w", pair, p, err)
			}
			upserted++
			stats.PeriodsProcessed++
			if outcome == domain.Inserted {
				stats.RecordsCreated++
			} else {
				stats.RecordsUpdated++
			}
		}
		// pairs with only derived rows produce no aggregate and are not counted
		if upserted > 0 {
			stats.CurrencyPairsProcessed++
		}
	}
	a.log.Info("aggregate.done",
		zap.Int("periods", stats.PeriodsProcessed),
		zap.Int("pairs", stats.CurrencyPairsProcessed),
		zap.Int("created", stats.RecordsCreated),
		zap.Int("updated", stats.RecordsUpdated),
	)
	return stats, nil
}

// RecomputeForDateRange runs Recompute once per month spanned by the range.
func (a *Aggregator) RecomputeForDateRange(ctx context.Context, start, end time.Time) (AggregateStats, error) {
	var total AggregateStats
	rng, err := domain.NewDateRange(start, end)
	if err != nil {
		return total, err
	}
	for _, p := range rng.Periods() {
		year, month := p.Year, int(p.Month)
		s, err := a.Recompute(ctx, domain.PeriodFilter{Year: &year, Month: &month})
		if err != nil {
			return total, err
		}
		total.add(s)
	}
	return total, nil
}
