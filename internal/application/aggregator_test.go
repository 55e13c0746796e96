package application

import (
	"context"
	"testing"
	"time"

	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/memstore"

	"github.com/stretchr/testify/require"
)

func seedJanuary(store *memstore.Store) {
	mustUpsert(store,
		providerRate(usdclp, day(2025, 1, 2), "900"),
		providerRate(usdclp, day(2025, 1, 3), "950"),
		providerRate(usdclp, day(2025, 1, 6), "1000"),
		domain.DailyRate{
			RateDate:        day(2025, 1, 7),
			Pair:            usdclp,
			Rate:            dec("5000"),
			SourceType:      domain.SourceDerived,
			IsIndirect:      true,
			ConversionChain: []domain.ChainLink{{Pair: "X/Y", Rate: dec("1")}},
		},
	)
}

func Test_Recompute_Stats(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	seedJanuary(store)
	agg := NewAggregator(store, store, WithClock(fixedNow))

	stats, err := agg.Recompute(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	require.Equal(t, AggregateStats{PeriodsProcessed: 1, CurrencyPairsProcessed: 1, RecordsCreated: 1}, stats)

	rows, err := store.ListMonthlyAggregates(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	a := rows[0]
	// The derived 5000 row is excluded.
	require.True(t, a.AvgRate.Equal(dec("950")), a.AvgRate.String())
	require.True(t, a.MinRate.Equal(dec("900")))
	require.True(t, a.MaxRate.Equal(dec("1000")))
	require.Equal(t, 3, a.DataPoints)
	require.Equal(t, domain.Period{Year: 2025, Month: time.January}, a.Period)
	require.Equal(t, fixedNow.T, a.CalculatedAt)

	stats, err = agg.Recompute(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.RecordsUpdated)
	require.Zero(t, stats.RecordsCreated)
}

func Test_Recompute_DerivedOnlyPeriodProducesNoRow(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	mustUpsert(store, domain.DailyRate{
		RateDate:        day(2025, 2, 3),
		Pair:            clfusd,
		Rate:            dec("38.1"),
		SourceType:      domain.SourceDerived,
		IsIndirect:      true,
		ConversionChain: []domain.ChainLink{{Pair: "CLF/CLP", Rate: dec("1")}},
	})
	agg := NewAggregator(store, store)

	stats, err := agg.Recompute(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	require.Equal(t, AggregateStats{}, stats)
	rows, err := store.ListMonthlyAggregates(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func Test_Recompute_Filters(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	seedJanuary(store)
	mustUpsert(store,
		providerRate(usdclp, day(2025, 2, 3), "970"),
		providerRate(eurclp, day(2024, 12, 30), "1030"),
	)
	agg := NewAggregator(store, store)

	year, month := 2025, 2
	stats, err := agg.Recompute(context.Background(), domain.PeriodFilter{Year: &year, Month: &month})
	require.NoError(t, err)
	require.Equal(t, AggregateStats{PeriodsProcessed: 1, CurrencyPairsProcessed: 1, RecordsCreated: 1}, stats)

	stats, err = agg.Recompute(context.Background(), domain.PeriodFilter{Year: &year})
	require.NoError(t, err)
	require.Equal(t, 2, stats.PeriodsProcessed)
	require.Equal(t, 1, stats.RecordsCreated)

	bad := 13
	_, err = agg.Recompute(context.Background(), domain.PeriodFilter{Month: &bad})
	require.ErrorIs(t, err, domain.ErrInvalidRange)
}

func Test_RecomputeForDateRange_SumsPeriods(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	seedJanuary(store)
	mustUpsert(store,
		providerRate(usdclp, day(2025, 2, 3), "970"),
		providerRate(eurclp, day(2024, 12, 30), "1030"),
	)
	agg := NewAggregator(store, store)

	stats, err := agg.RecomputeForDateRange(context.Background(), day(2024, 12, 15), day(2025, 2, 1))
	require.NoError(t, err)
	require.Equal(t, AggregateStats{PeriodsProcessed: 3, CurrencyPairsProcessed: 3, RecordsCreated: 3}, stats)
}

func Test_Recompute_StaleAggregateKept(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	old := domain.MonthlyAggregate{
		Pair:       eurclp,
		Period:     domain.Period{Year: 2024, Month: time.March},
		AvgRate:    dec("1"),
		MinRate:    dec("1"),
		MaxRate:    dec("1"),
		DataPoints: 1,
	}
	_, err := store.UpsertMonthlyAggregate(context.Background(), old)
	require.NoError(t, err)

	_, err = NewAggregator(store, store).Recompute(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	rows, err := store.ListMonthlyAggregates(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	require.Equal(t, []domain.MonthlyAggregate{old}, rows)
}
