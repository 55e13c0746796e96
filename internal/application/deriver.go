package application

import (
	"context"
	"errors"
	"time"

	"bcchrates-service/internal/domain"

	"go.uber.org/zap"
)

// Deriver computes the pivot chain target (e.g. CLF/USD) from two stored
// direct rates of the same date.
type Deriver struct {
	rates RateRepo
	chain domain.PivotChain
	settings
}

func NewDeriver(rates RateRepo, chain domain.PivotChain, opts ...Option) *Deriver {
	return &Deriver{rates: rates, chain: chain, settings: newSettings(opts)}
}

func (d *Deriver) DeriveForRange(ctx context.Context, start, end time.Time) (DeriveStats, error) {
	var stats DeriveStats
	rng, err := domain.NewDateRange(start, end)
	if err != nil {
		return stats, err
	}
	legs, err := d.rates.ListDailyRates(ctx, d.chain.Leg, domain.RateQuery{From: rng.Start, To: rng.End})
	if err != nil {
		return stats, err
	}
	for _, leg := range legs {
		base, err := d.rates.FindDailyRate(ctx, leg.RateDate, d.chain.Base)
		if errors.Is(err, domain.ErrNotFound) {
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, err
		}
		row := d.derive(leg, base)
		outcome, err := d.rates.UpsertDailyRate(ctx, row)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case domain.Inserted:
			stats.Inserted++
		case domain.Updated:
			stats.Updated++
		case domain.Unchanged:
			stats.Unchanged++
		}
	}
	d.log.Info("derive.done",
		zap.String("target", d.chain.Target.String()),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (d *Deriver) derive(leg, base domain.DailyRate) domain.DailyRate {
	return domain.DailyRate{
		RateDate:    leg.RateDate,
		Pair:        d.chain.Target,
		Rate:        leg.Rate.DivRound(base.Rate, domain.RatePrecision),
		SourceType:  domain.SourceDerived,
		SourceLabel: "derived:" + leg.Pair.String() + ":" + base.Pair.String(),
		IsIndirect:  true,
		ConversionChain: []domain.ChainLink{
			{Pair: leg.Pair.String(), Rate: leg.Rate},
			{Pair: base.Pair.String(), Rate: base.Rate},
		},
		CreatedAt: d.clock.Now().UTC(),
	}
}
