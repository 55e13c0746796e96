package application

import (
	"context"
	"testing"

	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/memstore"

	"github.com/stretchr/testify/require"
)

func Test_DeriveForRange_Correctness(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	d := day(2025, 1, 2)
	mustUpsert(store,
		providerRate(clfclp, d, "36280.45"),
		providerRate(usdclp, d, "950.25"),
	)
	deriver := NewDeriver(store, domain.DefaultCatalog.Pivot, WithClock(fixedNow))

	stats, err := deriver.DeriveForRange(context.Background(), d, d)
	require.NoError(t, err)
	require.Equal(t, DeriveStats{Inserted: 1}, stats)

	got, err := store.FindDailyRate(context.Background(), d, clfusd)
	require.NoError(t, err)
	require.True(t, got.Rate.Equal(dec("38.17990003")), got.Rate.String())
	require.True(t, got.IsIndirect)
	require.Equal(t, domain.SourceDerived, got.SourceType)
	require.Len(t, got.ConversionChain, 2)
	require.Equal(t, "CLF/CLP", got.ConversionChain[0].Pair)
	require.True(t, got.ConversionChain[0].Rate.Equal(dec("36280.45")))
	require.Equal(t, "USD/CLP", got.ConversionChain[1].Pair)
	require.True(t, got.ConversionChain[1].Rate.Equal(dec("950.25")))
}

func Test_DeriveForRange_MissingBaseSkipped(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	mustUpsert(store,
		providerRate(clfclp, day(2025, 1, 4), "36295.00"),
		providerRate(usdclp, day(2025, 1, 3), "948.10"),
	)
	deriver := NewDeriver(store, domain.DefaultCatalog.Pivot)

	stats, err := deriver.DeriveForRange(context.Background(), day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Equal(t, DeriveStats{Skipped: 1}, stats)

	_, err = store.FindDailyRate(context.Background(), day(2025, 1, 4), clfusd)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_DeriveForRange_OnlyInRange(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	mustUpsert(store,
		providerRate(clfclp, day(2025, 1, 2), "36280.45"),
		providerRate(usdclp, day(2025, 1, 2), "950.25"),
		providerRate(clfclp, day(2025, 1, 3), "36290.12"),
		providerRate(usdclp, day(2025, 1, 3), "948.10"),
	)
	deriver := NewDeriver(store, domain.DefaultCatalog.Pivot)

	stats, err := deriver.DeriveForRange(context.Background(), day(2025, 1, 3), day(2025, 1, 3))
	require.NoError(t, err)
	require.Equal(t, 1, stats.Inserted)
	_, err = store.FindDailyRate(context.Background(), day(2025, 1, 2), clfusd)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Same inputs again: nothing changes.
	stats, err = deriver.DeriveForRange(context.Background(), day(2025, 1, 3), day(2025, 1, 3))
	require.NoError(t, err)
	require.Equal(t, DeriveStats{Unchanged: 1}, stats)
}
