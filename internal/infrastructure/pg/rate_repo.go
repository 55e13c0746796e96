package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/logx"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const rateColumns = `rate_date, from_currency, to_currency, rate::text, source_type,
        source_label, is_indirect, conversion_chain, created_at`

type RateRepo struct{ db *DB }

func NewRateRepo(db *DB) *RateRepo { return &RateRepo{db: db} }

func (r *RateRepo) log(op, sql string) *zap.Logger {
	return logx.L().With(
		zap.String("repo", "daily_rate"),
		zap.String("operation", op),
		zap.String("sql", sql),
	)
}

// UpsertDailyRate writes one row per (date, pair). A write that would not
// change the stored value is skipped and reported as Unchanged.
func (r *RateRepo) UpsertDailyRate(ctx context.Context, rate domain.DailyRate) (domain.UpsertOutcome, error) {
	if err := rate.Validate(); err != nil {
		return 0, err
	}
	const up = `
        INSERT INTO daily_rates(rate_date, from_currency, to_currency, rate, source_type,
                                source_label, is_indirect, conversion_chain)
        VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8::jsonb)
        ON CONFLICT (rate_date, from_currency, to_currency) DO UPDATE
          SET rate=EXCLUDED.rate,
              source_type=EXCLUDED.source_type,
              source_label=EXCLUDED.source_label,
              is_indirect=EXCLUDED.is_indirect,
              conversion_chain=EXCLUDED.conversion_chain,
              updated_at=NOW()
          WHERE (daily_rates.rate, daily_rates.source_type, daily_rates.source_label,
                 daily_rates.is_indirect, daily_rates.conversion_chain)
                IS DISTINCT FROM
                (EXCLUDED.rate, EXCLUDED.source_type, EXCLUDED.source_label,
                 EXCLUDED.is_indirect, EXCLUDED.conversion_chain)
        RETURNING (xmax = 0)`
	chain, err := encodeChain(rate.ConversionChain)
	if err != nil {
		return 0, err
	}
	log := r.log("UpsertDailyRate", up).With(
		zap.String("pair", rate.Pair.String()),
		zap.String("date", rate.RateDate.Format(domain.DateLayout)),
	)
	log.Debug("sql.exec_start")
	var inserted bool
	err = r.db.Pool.QueryRow(ctx, up,
		domain.Day(rate.RateDate), string(rate.Pair.From), string(rate.Pair.To),
		rate.Rate.Round(domain.RatePrecision).String(), rate.SourceType.String(),
		rate.SourceLabel, rate.IsIndirect, chain,
	).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		log.Debug("sql.exec_unchanged")
		return domain.Unchanged, nil
	case err != nil:
		log.Error("sql.exec_failed", zap.Error(err))
		return 0, err
	case inserted:
		log.Debug("sql.exec_success", zap.String("outcome", "inserted"))
		return domain.Inserted, nil
	default:
		log.Debug("sql.exec_success", zap.String("outcome", "updated"))
		return domain.Updated, nil
	}
}

func (r *RateRepo) FindDailyRate(ctx context.Context, date time.Time, pair domain.Pair) (domain.DailyRate, error) {
	const q = `SELECT ` + rateColumns + `
        FROM daily_rates
        WHERE rate_date=$1 AND from_currency=$2 AND to_currency=$3`
	return r.queryOne(ctx, "FindDailyRate", q, domain.Day(date), string(pair.From), string(pair.To))
}

func (r *RateRepo) FindLatestBefore(ctx context.Context, pair domain.Pair, before time.Time) (domain.DailyRate, error) {
	const q = `SELECT ` + rateColumns + `
        FROM daily_rates
        WHERE from_currency=$1 AND to_currency=$2 AND rate_date < $3
        ORDER BY rate_date DESC
        LIMIT 1`
	return r.queryOne(ctx, "FindLatestBefore", q, string(pair.From), string(pair.To), domain.Day(before))
}

func (r *RateRepo) queryOne(ctx context.Context, op, q string, args ...any) (domain.DailyRate, error) {
	log := r.log(op, q)
	log.Debug("sql.query_start")
	out, err := scanRate(r.db.Pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debug("sql.query_no_rows")
		return domain.DailyRate{}, domain.ErrNotFound
	}
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.DailyRate{}, err
	}
	return out, nil
}

func (r *RateRepo) ListDailyRates(ctx context.Context, pair domain.Pair, rq domain.RateQuery) ([]domain.DailyRate, error) {
	const q = `SELECT ` + rateColumns + `
        FROM daily_rates
        WHERE from_currency=$1 AND to_currency=$2
          AND ($3::date IS NULL OR rate_date >= $3)
          AND ($4::date IS NULL OR rate_date <= $4)
        ORDER BY rate_date
        LIMIT $5`
	var from, to, limit any
	if !rq.From.IsZero() {
		from = domain.Day(rq.From)
	}
	if !rq.To.IsZero() {
		to = domain.Day(rq.To)
	}
	if rq.Limit > 0 {
		limit = rq.Limit
	}
	log := r.log("ListDailyRates", q).With(zap.String("pair", pair.String()))
	log.Debug("sql.query_start")
	rows, err := r.db.Pool.Query(ctx, q, string(pair.From), string(pair.To), from, to, limit)
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	var out []domain.DailyRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	if err := rows.Err(); err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	log.Debug("sql.query_success", zap.Int("rows", len(out)))
	return out, nil
}

func (r *RateRepo) ListDistinctPairs(ctx context.Context, f domain.PeriodFilter) ([]domain.Pair, error) {
	const q = `
        SELECT DISTINCT from_currency, to_currency
        FROM daily_rates
        WHERE ($1::int IS NULL OR EXTRACT(YEAR FROM rate_date) = $1)
          AND ($2::int IS NULL OR EXTRACT(MONTH FROM rate_date) = $2)
        ORDER BY from_currency, to_currency`
	y, m := filterArgs(f.Year, f.Month)
	rows, err := r.db.Pool.Query(ctx, q, y, m)
	if err != nil {
		r.log("ListDistinctPairs", q).Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	var out []domain.Pair
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		out = append(out, domain.NewPair(domain.Currency(from), domain.Currency(to)))
	}
	return out, rows.Err()
}

func (r *RateRepo) ListPeriods(ctx context.Context, pair domain.Pair, f domain.PeriodFilter) ([]domain.Period, error) {
	const q = `
        SELECT DISTINCT EXTRACT(YEAR FROM rate_date)::int, EXTRACT(MONTH FROM rate_date)::int
        FROM daily_rates
        WHERE from_currency=$1 AND to_currency=$2
          AND ($3::int IS NULL OR EXTRACT(YEAR FROM rate_date) = $3)
          AND ($4::int IS NULL OR EXTRACT(MONTH FROM rate_date) = $4)
        ORDER BY 1, 2`
	y, m := filterArgs(f.Year, f.Month)
	rows, err := r.db.Pool.Query(ctx, q, string(pair.From), string(pair.To), y, m)
	if err != nil {
		r.log("ListPeriods", q).Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	var out []domain.Period
	for rows.Next() {
		var year, month int
		if err := rows.Scan(&year, &month); err != nil {
			return nil, err
		}
		out = append(out, domain.Period{Year: year, Month: time.Month(month)})
	}
	return out, rows.Err()
}

func (r *RateRepo) AggregateStats(ctx context.Context, pair domain.Pair, p domain.Period) (domain.RateStats, error) {
	const q = `
        SELECT COUNT(*),
               COALESCE(ROUND(AVG(rate), 8)::text, '0'),
               COALESCE(MIN(rate)::text, '0'),
               COALESCE(MAX(rate)::text, '0')
        FROM daily_rates
        WHERE from_currency=$1 AND to_currency=$2
          AND source_type='PROVIDER'
          AND rate_date >= $3 AND rate_date < $4`
	var (
		st               domain.RateStats
		avgS, minS, maxS string
	)
	err := r.db.Pool.QueryRow(ctx, q, string(pair.From), string(pair.To), p.Start(), p.End()).
		Scan(&st.Count, &avgS, &minS, &maxS)
	if err != nil {
		r.log("AggregateStats", q).Error("sql.query_failed", zap.Error(err))
		return domain.RateStats{}, err
	}
	if st.Avg, err = decimal.NewFromString(avgS); err != nil {
		return domain.RateStats{}, err
	}
	if st.Min, err = decimal.NewFromString(minS); err != nil {
		return domain.RateStats{}, err
	}
	if st.Max, err = decimal.NewFromString(maxS); err != nil {
		return domain.RateStats{}, err
	}
	return st, nil
}

func encodeChain(chain []domain.ChainLink) (*string, error) {
	if len(chain) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(chain)
	if err != nil {
		return nil, fmt.Errorf("encode conversion chain: %w", err)
	}
	s := string(b)
	return &s, nil
}

func scanRate(row pgx.Row) (domain.DailyRate, error) {
	var (
		out          domain.DailyRate
		from, to     string
		rate, source string
		chain        []byte
	)
	err := row.Scan(&out.RateDate, &from, &to, &rate, &source,
		&out.SourceLabel, &out.IsIndirect, &chain, &out.CreatedAt)
	if err != nil {
		return domain.DailyRate{}, err
	}
	out.Pair = domain.NewPair(domain.Currency(from), domain.Currency(to))
	if out.Rate, err = decimal.NewFromString(rate); err != nil {
		return domain.DailyRate{}, fmt.Errorf("decode rate: %w", err)
	}
	if out.SourceType, err = domain.ParseSourceType(source); err != nil {
		return domain.DailyRate{}, err
	}
	if len(chain) > 0 {
		if err := json.Unmarshal(chain, &out.ConversionChain); err != nil {
			return domain.DailyRate{}, fmt.Errorf("decode conversion chain: %w", err)
		}
	}
	out.RateDate = domain.Day(out.RateDate)
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}
