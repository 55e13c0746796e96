package pg

import (
	"context"
	"time"

	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/logx"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AggregateRepo struct{ db *DB }

func NewAggregateRepo(db *DB) *AggregateRepo { return &AggregateRepo{db: db} }

func (r *AggregateRepo) UpsertMonthlyAggregate(ctx context.Context, a domain.MonthlyAggregate) (domain.UpsertOutcome, error) {
	const up = `
        INSERT INTO monthly_aggregates(from_currency, to_currency, year, month,
                                       avg_rate, min_rate, max_rate, data_points, calculated_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9)
        ON CONFLICT (from_currency, to_currency, year, month) DO UPDATE
          SET avg_rate=EXCLUDED.avg_rate,
              min_rate=EXCLUDED.min_rate,
              max_rate=EXCLUDED.max_rate,
              data_points=EXCLUDED.data_points,
              calculated_at=EXCLUDED.calculated_at
        RETURNING (xmax = 0)`
	log := logx.L().With(
		zap.String("repo", "monthly_aggregate"),
		zap.String("operation", "UpsertMonthlyAggregate"),
		zap.String("sql", up),
		zap.String("pair", a.Pair.String()),
		zap.String("period", a.Period.String()),
	)
	log.Debug("sql.exec_start")
	var inserted bool
	err := r.db.Pool.QueryRow(ctx, up,
		string(a.Pair.From), string(a.Pair.To), a.Period.Year, int(a.Period.Month),
		a.AvgRate.String(), a.MinRate.String(), a.MaxRate.String(), a.DataPoints, a.CalculatedAt,
	).Scan(&inserted)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return 0, err
	}
	if inserted {
		return domain.Inserted, nil
	}
	return domain.Updated, nil
}

func (r *AggregateRepo) ListMonthlyAggregates(ctx context.Context, f domain.PeriodFilter) ([]domain.MonthlyAggregate, error) {
	const q = `
        SELECT from_currency, to_currency, year, month, avg_rate::text, min_rate::text,
               max_rate::text, data_points, calculated_at
        FROM monthly_aggregates
        WHERE ($1::int IS NULL OR year = $1)
          AND ($2::int IS NULL OR month = $2)
        ORDER BY year, month, from_currency, to_currency`
	y, m := filterArgs(f.Year, f.Month)
	rows, err := r.db.Pool.Query(ctx, q, y, m)
	if err != nil {
		logx.L().Error("sql.query_failed",
			zap.String("repo", "monthly_aggregate"),
			zap.String("operation", "ListMonthlyAggregates"),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()
	var out []domain.MonthlyAggregate
	for rows.Next() {
		var (
			a                domain.MonthlyAggregate
			from, to         string
			month            int
			avgS, minS, maxS string
		)
		if err := rows.Scan(&from, &to, &a.Period.Year, &month, &avgS, &minS, &maxS, &a.DataPoints, &a.CalculatedAt); err != nil {
			return nil, err
		}
		a.Pair = domain.NewPair(domain.Currency(from), domain.Currency(to))
		a.Period.Month = time.Month(month)
		a.CalculatedAt = a.CalculatedAt.UTC()
		if a.AvgRate, err = decimal.NewFromString(avgS); err != nil {
			return nil, err
		}
		if a.MinRate, err = decimal.NewFromString(minS); err != nil {
			return nil, err
		}
		if a.MaxRate, err = decimal.NewFromString(maxS); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
