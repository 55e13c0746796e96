package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bcchrates-service/internal/domain"

	"go.uber.org/zap"
)

// SyncEngine ingests provider series into the rate repository, then runs
// derivation and monthly aggregation over what it touched.
type SyncEngine struct {
	rates      RateRepo
	source     RateSource
	catalog    domain.Catalog
	deriver    *Deriver
	aggregator *Aggregator
	settings
}

func NewSyncEngine(rates RateRepo, source RateSource, catalog domain.Catalog, deriver *Deriver, aggregator *Aggregator, opts ...Option) *SyncEngine {
	return &SyncEngine{
		rates:      rates,
		source:     source,
		catalog:    catalog,
		deriver:    deriver,
		aggregator: aggregator,
		settings:   newSettings(opts),
	}
}

// SyncRange syncs every mapping selected by pairFilter over [start, end].
// A nil filter selects all configured pairs, an empty one selects none.
//
// Per-observation and per-pair failures are counted in the stats. An error is
// returned only when no pair could be fetched at all, or when derivation or
// aggregation fail; stats are returned in every case.
func (e *SyncEngine) SyncRange(ctx context.Context, start, end time.Time, pairFilter []string) (SyncResult, error) {
	res := SyncResult{RunID: e.idgen.NewID()}
	rng, err := domain.NewDateRange(start, end)
	if err != nil {
		return res, err
	}
	mappings := e.catalog.Select(pairFilter)
	log := e.log.With(
		zap.String("run_id", res.RunID),
		zap.String("start", rng.Start.Format(domain.DateLayout)),
		zap.String("end", rng.End.Format(domain.DateLayout)),
	)
	log.Info("sync.start", zap.Int("pairs", len(mappings)))

	var fetchFailures int
	var lastErr error
	for _, m := range mappings {
		fetched, err := e.syncPair(ctx, log, m, rng, &res.Stats)
		if err == nil {
			continue
		}
		res.Stats.Errors++
		e.rec.PairFailed(m.Label())
		log.Warn("sync.pair_failed", zap.String("pair", m.Label()), zap.String("series", m.SeriesID), zap.Error(err))
		if !fetched {
			fetchFailures++
		}
		lastErr = err
	}
	if len(mappings) > 0 && fetchFailures == len(mappings) {
		log.Error("sync.all_sources_failed", zap.Error(lastErr))
		return res, fmt.Errorf("%w: %w", domain.ErrAllSourcesFailed, lastErr)
	}

	derived, err := e.deriver.DeriveForRange(ctx, rng.Start, rng.End)
	if err != nil {
		return res, fmt.Errorf("derive indirect rates: %w", err)
	}
	res.Stats.IndirectConversions = derived.Inserted + derived.Updated + derived.Unchanged

	monthly, err := e.aggregator.RecomputeForDateRange(ctx, rng.Start, rng.End)
	if err != nil {
		return res, fmt.Errorf("recompute monthly aggregates: %w", err)
	}
	res.Monthly = monthly

	log.Info("sync.done",
		zap.Int("processed", res.Stats.TotalProcessed),
		zap.Int("inserted", res.Stats.Inserted),
		zap.Int("updated", res.Stats.Updated),
		zap.Int("unchanged", res.Stats.Unchanged),
		zap.Int("errors", res.Stats.Errors),
		zap.Int("indirect", res.Stats.IndirectConversions),
	)
	return res, nil
}

// syncPair reports whether the series was fetched, so callers can tell
// upstream outages from storage failures.
func (e *SyncEngine) syncPair(ctx context.Context, log *zap.Logger, m domain.SeriesMapping, rng domain.DateRange, stats *SyncStats) (bool, error) {
	obs, err := e.source.FetchSeries(ctx, m.SeriesID, rng.Start, rng.End)
	if err != nil {
		return false, err
	}
	label := m.Label()
	for _, o := range obs {
		stats.TotalProcessed++
		date, value, err := o.Parse()
		if err != nil {
			stats.Errors++
			e.rec.Observation(label, "invalid")
			log.Debug("sync.observation_skipped", zap.String("pair", label), zap.Error(err))
			continue
		}
		row := domain.DailyRate{
			RateDate:    date,
			Pair:        m.Pair,
			Rate:        value,
			SourceType:  domain.SourceProvider,
			SourceLabel: m.SeriesID,
			CreatedAt:   e.clock.Now().UTC(),
		}
		outcome, err := e.rates.UpsertDailyRate(ctx, row)
		if err != nil {
			var repoErr *domain.RepositoryError
			if !errors.As(err, &repoErr) {
				err = &domain.RepositoryError{Op: "upsert daily rate", Err: err}
			}
			return true, err
		}
		switch outcome {
		case domain.Inserted:
			stats.Inserted++
		case domain.Updated:
			stats.Updated++
		case domain.Unchanged:
			stats.Unchanged++
		}
		e.rec.Observation(label, outcome.String())
	}
	return true, nil
}
