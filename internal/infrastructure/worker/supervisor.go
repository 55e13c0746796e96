package worker

import (
	"context"
	"sync"
	"time"

	"bcchrates-service/internal/application"
	"bcchrates-service/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var _ application.Worker = (*Supervisor)(nil)

type Syncer interface {
	SyncRange(ctx context.Context, start, end time.Time, pairFilter []string) (application.SyncResult, error)
}

type Recomputer interface {
	Recompute(ctx context.Context, f domain.PeriodFilter) (application.AggregateStats, error)
}

// RunRecorder observes scheduler activity; *metrics.SyncMetrics implements it.
type RunRecorder interface {
	RunAttempt()
	RunSkipped(reason string)
	RunFinished(ok bool, elapsed time.Duration, at time.Time)
}

type nopRunRecorder struct{}

func (nopRunRecorder) RunAttempt()                               {}
func (nopRunRecorder) RunSkipped(string)                         {}
func (nopRunRecorder) RunFinished(bool, time.Duration, time.Time) {}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

type SupervisorConfig struct {
	// Hour is the local hour (0-23) in which the daily run starts.
	Hour        int
	Tick        time.Duration
	Location    *time.Location
	MaxAttempts int
	RetryDelays []time.Duration
}

// Supervisor runs the daily sync of the current day. At most one run starts
// per local day; a failed run is retried with increasing delays.
type Supervisor struct {
	syncer   Syncer
	aggs     Recomputer
	notifier application.Notifier
	lock     application.RunLock
	cfg      SupervisorConfig

	Log     *zap.Logger
	Metrics RunRecorder
	Timer   backoff.Timer // paces retry waits; nil uses a real timer
	Clock   application.Clock

	manual  chan struct{}
	mu      sync.Mutex
	state   domain.RunState
	last    domain.RunState
	lastDay time.Time
}

func NewSupervisor(syncer Syncer, aggs Recomputer, notifier application.Notifier, lock application.RunLock, cfg SupervisorConfig) *Supervisor {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if lock == nil {
		lock = application.NoopLock{}
	}
	return &Supervisor{
		syncer:   syncer,
		aggs:     aggs,
		notifier: notifier,
		lock:     lock,
		cfg:      cfg,
		Log:      zap.NewNop(),
		Metrics:  nopRunRecorder{},
		Clock:    wallClock{},
		manual:   make(chan struct{}, 1),
	}
}

func (s *Supervisor) State() domain.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult is RunSucceeded or RunFailed after the first finished run.
func (s *Supervisor) LastResult() domain.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Supervisor) Start(ctx context.Context) {
	t := time.NewTicker(s.cfg.Tick)
	defer t.Stop()

	var wg sync.WaitGroup
	s.Log.Info("scheduler.started",
		zap.Int("hour", s.cfg.Hour),
		zap.Duration("tick", s.cfg.Tick),
		zap.String("timezone", s.cfg.Location.String()),
	)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.Log.Info("scheduler.stopped")
			return
		case now := <-t.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Tick(ctx, now)
			}()
		case <-s.manual:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.RunNow(ctx)
			}()
		}
	}
}

// Tick runs the daily sync if now falls in the target hour and no run has
// started today. It blocks until the run finishes and reports whether one
// was started.
func (s *Supervisor) Tick(ctx context.Context, now time.Time) bool {
	local := now.In(s.cfg.Location)
	if local.Hour() != s.cfg.Hour {
		return false
	}
	return s.runDay(ctx, domain.Day(local), true)
}

// RunNow syncs the current local day regardless of the hour gate.
func (s *Supervisor) RunNow(ctx context.Context) bool {
	return s.runDay(ctx, domain.Day(s.Clock.Now().In(s.cfg.Location)), false)
}

// Trigger asks the Start loop for a RunNow. It reports false when a run is
// executing or a request is already pending.
func (s *Supervisor) Trigger() bool {
	if s.State() == domain.RunRunning {
		return false
	}
	select {
	case s.manual <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Supervisor) runDay(ctx context.Context, day time.Time, scheduled bool) bool {
	log := s.Log.With(zap.String("day", day.Format(domain.DateLayout)))
	s.mu.Lock()
	switch {
	case s.state == domain.RunRunning:
		s.mu.Unlock()
		s.Metrics.RunSkipped("running")
		log.Info("scheduler.skip_running")
		return false
	case scheduled && s.lastDay.Equal(day):
		s.mu.Unlock()
		return false
	}
	s.state = domain.RunRunning
	s.mu.Unlock()

	ok, err := s.lock.TryAcquire(ctx, application.SyncLockKey)
	if err != nil || !ok {
		s.setState(domain.RunIdle)
		if err != nil {
			s.Metrics.RunSkipped("lock_error")
			log.Warn("scheduler.lock_failed", zap.Error(err))
		} else {
			s.Metrics.RunSkipped("locked")
			log.Info("scheduler.skip_locked")
		}
		return false
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), application.SyncLockKey); err != nil {
			log.Warn("scheduler.release_lock_failed", zap.Error(err))
		}
	}()
	if scheduled {
		s.mu.Lock()
		s.lastDay = day
		s.mu.Unlock()
	}

	result := s.run(ctx, log, day)
	s.mu.Lock()
	s.last = result
	s.state = domain.RunIdle
	s.mu.Unlock()
	return true
}

func (s *Supervisor) setState(st domain.RunState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) run(ctx context.Context, log *zap.Logger, day time.Time) domain.RunState {
	began := time.Now()
	var (
		attempts int
		res      application.SyncResult
	)
	op := func() error {
		attempts++
		s.Metrics.RunAttempt()
		r, err := s.syncer.SyncRange(ctx, day, day, nil)
		res = r
		if err != nil {
			log.Warn("scheduler.attempt_failed",
				zap.Int("attempt", attempts),
				zap.String("run_id", r.RunID),
				zap.Error(err),
			)
		}
		return err
	}
	notify := func(_ error, wait time.Duration) {
		log.Info("scheduler.retry_scheduled", zap.Int("next_attempt", attempts+1), zap.Duration("wait", wait))
	}
	var b backoff.BackOff = &backoff.StopBackOff{}
	if s.cfg.MaxAttempts > 1 {
		b = backoff.WithMaxRetries(newStepBackOff(s.cfg.RetryDelays), uint64(s.cfg.MaxAttempts-1))
	}
	err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(b, ctx), notify, s.Timer)

	// reporting must survive shutdown of the caller
	rctx := context.WithoutCancel(ctx)
	if err == nil {
		if _, err := s.aggs.Recompute(ctx, domain.PeriodFilter{}); err != nil {
			return s.fail(rctx, log, res.RunID, "monthly recompute", attempts, began, err)
		}
		elapsed := time.Since(began)
		s.Metrics.RunFinished(true, elapsed, s.Clock.Now())
		log.Info("scheduler.run_succeeded",
			zap.String("run_id", res.RunID),
			zap.Int("attempts", attempts),
			zap.Int("errors", res.Stats.Errors),
			zap.Duration("elapsed", elapsed),
		)
		rep := application.SuccessReport{RunID: res.RunID, Stats: res.Stats, Monthly: res.Monthly, Attempts: attempts, Elapsed: elapsed}
		if nerr := s.notifier.NotifySuccess(rctx, rep); nerr != nil {
			log.Warn("scheduler.notify_failed", zap.Error(nerr))
		}
		return domain.RunSucceeded
	}
	err = &domain.RetriesExhaustedError{Attempts: attempts, Err: err}
	return s.fail(rctx, log, res.RunID, "scheduled sync of "+day.Format(domain.DateLayout), attempts, began, err)
}

func (s *Supervisor) fail(ctx context.Context, log *zap.Logger, runID, what string, attempts int, began time.Time, err error) domain.RunState {
	elapsed := time.Since(began)
	s.Metrics.RunFinished(false, elapsed, s.Clock.Now())
	log.Error("scheduler.run_failed",
		zap.String("run_id", runID),
		zap.String("context", what),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	rep := application.FailureReport{RunID: runID, Err: err, Context: what, Attempts: attempts, Elapsed: elapsed}
	if nerr := s.notifier.NotifyFailure(ctx, rep); nerr != nil {
		log.Warn("scheduler.notify_failed", zap.Error(nerr))
	}
	return domain.RunFailed
}

// stepBackOff waits delays[i] before retry i+1 and repeats the last delay.
type stepBackOff struct {
	delays []time.Duration
	i      int
}

func newStepBackOff(delays []time.Duration) *stepBackOff { return &stepBackOff{delays: delays} }

func (b *stepBackOff) NextBackOff() time.Duration {
	if len(b.delays) == 0 {
		return 0
	}
	d := b.delays[min(b.i, len(b.delays)-1)]
	b.i++
	return d
}

func (b *stepBackOff) Reset() { b.i = 0 }
