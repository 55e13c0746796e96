package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/memstore"

	"github.com/stretchr/testify/require"
)

func newTriggers(store *memstore.Store, src RateSource, lock RunLock) *Triggers {
	e := newEngine(store, store, src)
	return NewTriggers(e, e.aggregator, lock, day(2025, 1, 1), WithClock(fixedNow))
}

func Test_Triggers_Sync_ReleasesLock(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	lock := &fakeLock{}
	tr := newTriggers(store, seedSource(), lock)

	res, err := tr.Sync(context.Background(), day(2025, 1, 2), day(2025, 1, 4), nil)
	require.NoError(t, err)
	require.Equal(t, 7, res.Stats.Inserted)
	require.Equal(t, 1, lock.acquired)
	require.Equal(t, 1, lock.released)
}

func Test_Triggers_Sync_ConflictWhenLockHeld(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	src := seedSource()
	tr := newTriggers(store, src, &fakeLock{held: true})

	_, err := tr.Sync(context.Background(), day(2025, 1, 2), day(2025, 1, 4), nil)
	require.ErrorIs(t, err, ErrConflict)
	require.Empty(t, src.calls)
}

func Test_Triggers_Sync_LockError(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	tr := newTriggers(store, seedSource(), &fakeLock{err: errors.New("redis down")})
	_, err := tr.Sync(context.Background(), day(2025, 1, 2), day(2025, 1, 4), nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrConflict)
}

func Test_Triggers_SyncHistorical_UsesBoundary(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	src := seedSource()
	tr := newTriggers(store, src, nil)

	res, err := tr.SyncHistorical(context.Background(), []string{"USD/CLP"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Stats.Inserted)
	require.Equal(t, map[string]int{seriesUSD: 1}, src.calls)
}

func Test_Triggers_Recompute(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	seedJanuary(store)
	tr := newTriggers(store, newFakeSource(), nil)
	stats, err := tr.Recompute(context.Background(), domain.PeriodFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.RecordsCreated)
}

// gatedSource blocks every fetch until release is closed.
type gatedSource struct {
	*fakeSource
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) FetchSeries(ctx context.Context, id string, start, end time.Time) ([]domain.Observation, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.fakeSource.FetchSeries(ctx, id, start, end)
}

func Test_Triggers_Sync_RejectsOverlappingRun(t *testing.T) {
	t.Parallel()
	store := memstore.New()
	src := &gatedSource{fakeSource: seedSource(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	tr := newTriggers(store, src, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := tr.Sync(ctx, day(2025, 1, 2), day(2025, 1, 2), []string{"USD/CLP"})
		done <- err
	}()
	<-src.entered

	_, err := tr.Sync(ctx, day(2025, 1, 2), day(2025, 1, 2), []string{"USD/CLP"})
	require.ErrorIs(t, err, ErrConflict)
	_, err = tr.SyncHistorical(ctx, []string{"USD/CLP"})
	require.ErrorIs(t, err, ErrConflict)

	close(src.release)
	require.NoError(t, <-done)
	require.Equal(t, map[string]int{seriesUSD: 1}, src.calls)

	_, err = tr.Sync(ctx, day(2025, 1, 3), day(2025, 1, 3), []string{"USD/CLP"})
	require.NoError(t, err)
}
