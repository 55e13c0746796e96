package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"bcchrates-service/internal/domain"

	"go.uber.org/zap"
)

// SyncLockKey names the run lock shared by manual and scheduled runs.
const SyncLockKey = "bcchrates:sync"

// Triggers holds the manual entry points. At most one manual sync runs per
// process; across processes syncs also hold the run lock.
type Triggers struct {
	engine          *SyncEngine
	aggregator      *Aggregator
	lock            RunLock
	historicalStart time.Time
	running         atomic.Bool
	settings
}

func NewTriggers(engine *SyncEngine, aggregator *Aggregator, lock RunLock, historicalStart time.Time, opts ...Option) *Triggers {
	if lock == nil {
		lock = NoopLock{}
	}
	return &Triggers{
		engine:          engine,
		aggregator:      aggregator,
		lock:            lock,
		historicalStart: domain.Day(historicalStart),
		settings:        newSettings(opts),
	}
}

func (t *Triggers) Sync(ctx context.Context, start, end time.Time, pairFilter []string) (SyncResult, error) {
	if _, err := domain.NewDateRange(start, end); err != nil {
		return SyncResult{}, err
	}
	if !t.running.CompareAndSwap(false, true) {
		return SyncResult{}, fmt.Errorf("%w: a sync run is already in progress", ErrConflict)
	}
	defer t.running.Store(false)

	ok, err := t.lock.TryAcquire(ctx, SyncLockKey)
	if err != nil {
		return SyncResult{}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return SyncResult{}, fmt.Errorf("%w: a sync run is already in progress", ErrConflict)
	}
	defer func() {
		if err := t.lock.Release(context.WithoutCancel(ctx), SyncLockKey); err != nil {
			t.log.Warn("trigger.release_lock_failed", zap.Error(err))
		}
	}()
	return t.engine.SyncRange(ctx, start, end, pairFilter)
}

// SyncHistorical syncs from the configured start boundary up to today.
func (t *Triggers) SyncHistorical(ctx context.Context, pairFilter []string) (SyncResult, error) {
	return t.Sync(ctx, t.historicalStart, t.today(), pairFilter)
}

func (t *Triggers) Recompute(ctx context.Context, f domain.PeriodFilter) (AggregateStats, error) {
	return t.aggregator.Recompute(ctx, f)
}
