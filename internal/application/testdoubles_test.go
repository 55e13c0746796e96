package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/memstore"

	"github.com/shopspring/decimal"
)

var ErrRepo = errors.New("repo error")

var (
	usdclp = domain.NewPair(domain.USD, domain.CLP)
	eurclp = domain.NewPair(domain.EUR, domain.CLP)
	clfclp = domain.NewPair(domain.CLF, domain.CLP)
	clfusd = domain.NewPair(domain.CLF, domain.USD)
)

const (
	seriesUSD = "F073.TCO.PRE.Z.D"
	seriesEUR = "F072.CLP.EUR.N.O.D"
	seriesCLF = "F073.UFF.PRE.Z.D"
)

type fakeSource struct {
	mu     sync.Mutex
	series map[string][]domain.Observation
	errs   map[string]error
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{series: map[string][]domain.Observation{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeSource) set(series string, obs ...domain.Observation) { f.series[series] = obs }

func (f *fakeSource) FetchSeries(_ context.Context, id string, _, _ time.Time) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.series[id], nil
}

func obs(date, value string) domain.Observation {
	return domain.Observation{Date: date, Value: value, StatusCode: "OK"}
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func providerRate(pair domain.Pair, date time.Time, rate string) domain.DailyRate {
	return domain.DailyRate{RateDate: date, Pair: pair, Rate: dec(rate), SourceType: domain.SourceProvider, SourceLabel: "test"}
}

func mustUpsert(store *memstore.Store, rows ...domain.DailyRate) {
	for _, r := range rows {
		if _, err := store.UpsertDailyRate(context.Background(), r); err != nil {
			panic(fmt.Sprintf("seed %s: %v", r.Pair, err))
		}
	}
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string { s.n++; return fmt.Sprintf("run-%d", s.n) }

// failingRates fails upserts for one pair and delegates everything else.
type failingRates struct {
	*memstore.Store
	failPair domain.Pair
}

func (f failingRates) UpsertDailyRate(ctx context.Context, r domain.DailyRate) (domain.UpsertOutcome, error) {
	if r.Pair == f.failPair {
		return 0, ErrRepo
	}
	return f.Store.UpsertDailyRate(ctx, r)
}

type fakeLock struct {
	held     bool
	err      error
	acquired int
	released int
}

func (l *fakeLock) TryAcquire(context.Context, string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeLock) Release(context.Context, string) error {
	l.released++
	return nil
}

var fixedNow = FixedClock{T: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}

func newEngine(store RateRepo, aggs AggregateRepo, src RateSource) *SyncEngine {
	opts := []Option{WithClock(fixedNow), WithIDGen(&seqIDs{})}
	deriver := NewDeriver(store, domain.DefaultCatalog.Pivot, opts...)
	aggregator := NewAggregator(store, aggs, opts...)
	return NewSyncEngine(store, src, domain.DefaultCatalog, deriver, aggregator, opts...)
}
