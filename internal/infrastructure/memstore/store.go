// Package memstore keeps rates and aggregates in process memory. It backs
// STORAGE=memory and the application tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"bcchrates-service/internal/domain"

	"github.com/shopspring/decimal"
)

type rateKey struct {
	date time.Time
	pair domain.Pair
}

type aggKey struct {
	pair   domain.Pair
	period domain.Period
}

type Store struct {
	mu    sync.RWMutex
	rates map[rateKey]domain.DailyRate
	aggs  map[aggKey]domain.MonthlyAggregate
}

func New() *Store {
	return &Store{
		rates: map[rateKey]domain.DailyRate{},
		aggs:  map[aggKey]domain.MonthlyAggregate{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) UpsertDailyRate(_ context.Context, r domain.DailyRate) (domain.UpsertOutcome, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	r.RateDate = domain.Day(r.RateDate)
	k := rateKey{date: r.RateDate, pair: r.Pair}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.rates[k]
	if !ok {
		s.rates[k] = r
		return domain.Inserted, nil
	}
	if prev.SameValue(r) {
		return domain.Unchanged, nil
	}
	r.CreatedAt = prev.CreatedAt
	s.rates[k] = r
	return domain.Updated, nil
}

func (s *Store) FindDailyRate(_ context.Context, date time.Time, pair domain.Pair) (domain.DailyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[rateKey{date: domain.Day(date), pair: pair}]
	if !ok {
		return domain.DailyRate{}, domain.ErrNotFound
	}
	return r, nil
}

// sortedRates returns the rows of a pair ascending by date. Caller holds the lock.
func (s *Store) sortedRates(pair domain.Pair) []domain.DailyRate {
	var out []domain.DailyRate
	for k, r := range s.rates {
		if k.pair == pair {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RateDate.Before(out[j].RateDate) })
	return out
}

func (s *Store) ListDailyRates(_ context.Context, pair domain.Pair, q domain.RateQuery) ([]domain.DailyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DailyRate
	for _, r := range s.sortedRates(pair) {
		if !q.From.IsZero() && r.RateDate.Before(domain.Day(q.From)) {
			continue
		}
		if !q.To.IsZero() && r.RateDate.After(domain.Day(q.To)) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) FindLatestBefore(_ context.Context, pair domain.Pair, before time.Time) (domain.DailyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bound := domain.Day(before)
	var best *domain.DailyRate
	for k, r := range s.rates {
		if k.pair != pair || !k.date.Before(bound) {
			continue
		}
		if best == nil || r.RateDate.After(best.RateDate) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return domain.DailyRate{}, domain.ErrNotFound
	}
	return *best, nil
}

func (s *Store) ListDistinctPairs(_ context.Context, f domain.PeriodFilter) ([]domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[domain.Pair]bool{}
	var out []domain.Pair
	for k := range s.rates {
		if f.Matches(k.date) && !seen[k.pair] {
			seen[k.pair] = true
			out = append(out, k.pair)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *Store) ListPeriods(_ context.Context, pair domain.Pair, f domain.PeriodFilter) ([]domain.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[domain.Period]bool{}
	var out []domain.Period
	for k := range s.rates {
		if k.pair != pair || !f.Matches(k.date) {
			continue
		}
		p := domain.PeriodOf(k.date)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *Store) AggregateStats(_ context.Context, pair domain.Pair, p domain.Period) (domain.RateStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st domain.RateStats
	sum := decimal.Zero
	for k, r := range s.rates {
		if k.pair != pair || r.SourceType != domain.SourceProvider || domain.PeriodOf(k.date) != p {
			continue
		}
		if st.Count == 0 || r.Rate.LessThan(st.Min) {
			st.Min = r.Rate
		}
		if st.Count == 0 || r.Rate.GreaterThan(st.Max) {
			st.Max = r.Rate
		}
		sum = sum.Add(r.Rate)
		st.Count++
	}
	if st.Count > 0 {
		st.Avg = sum.DivRound(decimal.NewFromInt(int64(st.Count)), domain.RatePrecision)
	}
	return st, nil
}

func (s *Store) UpsertMonthlyAggregate(_ context.Context, a domain.MonthlyAggregate) (domain.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := aggKey{pair: a.Pair, period: a.Period}
	_, ok := s.aggs[k]
	s.aggs[k] = a
	if ok {
		return domain.Updated, nil
	}
	return domain.Inserted, nil
}

func (s *Store) ListMonthlyAggregates(_ context.Context, f domain.PeriodFilter) ([]domain.MonthlyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MonthlyAggregate
	for k, a := range s.aggs {
		if f.Matches(k.period.Start()) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period.Before(out[j].Period)
		}
		return out[i].Pair.String() < out[j].Pair.String()
	})
	return out, nil
}

// DailyRateCount is the number of stored daily rows.
func (s *Store) DailyRateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rates)
}
