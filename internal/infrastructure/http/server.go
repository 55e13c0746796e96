package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bcchrates-service/internal/application"
	"bcchrates-service/internal/domain"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

type Server struct {
	triggers *application.Triggers
	queries  *application.QueryService
	ping     func(ctx context.Context) error
	metrics  http.Handler
}

func NewServer(triggers *application.Triggers, queries *application.QueryService) *Server {
	return &Server{triggers: triggers, queries: queries}
}

// SetReadyCheck installs the check behind /readyz.
func (s *Server) SetReadyCheck(fn func(ctx context.Context) error) { s.ping = fn }

func (s *Server) SetMetricsHandler(h http.Handler) { s.metrics = h }

type syncRequest struct {
	StartDate openapi_types.Date `json:"startDate"`
	EndDate   openapi_types.Date `json:"endDate"`
	// Absent or null selects every pair; [] selects none.
	PairFilter []string `json:"pairFilter"`
	Pairs      []string `json:"pairs"` // alias of pairFilter
}

func (b syncRequest) filter() []string {
	if b.PairFilter != nil {
		return b.PairFilter
	}
	return b.Pairs
}

type monthlyDTO struct {
	Periods       int `json:"periods"`
	CurrencyPairs int `json:"currencyPairs"`
}

type syncResponse struct {
	Success                   bool                  `json:"success"`
	Message                   string                `json:"message"`
	RunID                     string                `json:"runId"`
	Stats                     application.SyncStats `json:"stats"`
	MonthlyAveragesCalculated *monthlyDTO           `json:"monthlyAveragesCalculated,omitempty"`
}

func newSyncResponse(msg string, res application.SyncResult) syncResponse {
	out := syncResponse{Success: true, Message: msg, RunID: res.RunID, Stats: res.Stats}
	if res.Monthly.PeriodsProcessed > 0 {
		out.MonthlyAveragesCalculated = &monthlyDTO{
			Periods:       res.Monthly.PeriodsProcessed,
			CurrencyPairs: res.Monthly.CurrencyPairsProcessed,
		}
	}
	return out
}

type recomputeResponse struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Stats   application.AggregateStats `json:"stats"`
}

type rateDTO struct {
	Date            string             `json:"date"`
	Pair            string             `json:"pair"`
	Rate            decimal.Decimal    `json:"rate"`
	SourceType      domain.SourceType  `json:"sourceType"`
	SourceLabel     string             `json:"sourceLabel"`
	IsIndirect      bool               `json:"isIndirect"`
	ConversionChain []domain.ChainLink `json:"conversionChain,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

type aggregateDTO struct {
	Pair         string          `json:"pair"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	AvgRate      decimal.Decimal `json:"avgRate"`
	MinRate      decimal.Decimal `json:"minRate"`
	MaxRate      decimal.Decimal `json:"maxRate"`
	DataPoints   int             `json:"dataPoints"`
	CalculatedAt time.Time       `json:"calculatedAt"`
}

type fallbackResponse struct {
	RequestedDate string  `json:"requestedDate"`
	IsFallback    bool    `json:"isFallback"`
	Rate          rateDTO `json:"rate"`
}

func toRateDTO(r domain.DailyRate) rateDTO {
	return rateDTO{
		Date:            r.RateDate.Format(domain.DateLayout),
		Pair:            r.Pair.String(),
		Rate:            r.Rate,
		SourceType:      r.SourceType,
		SourceLabel:     r.SourceLabel,
		IsIndirect:      r.IsIndirect,
		ConversionChain: r.ConversionChain,
		CreatedAt:       r.CreatedAt,
	}
}

func toRateDTOs(rows []domain.DailyRate) []rateDTO {
	out := make([]rateDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRateDTO(r))
	}
	return out
}

func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	var body syncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.StartDate.IsZero() || body.EndDate.IsZero() {
		writeError(w, http.StatusBadRequest, "startDate and endDate are required")
		return
	}
	res, err := s.triggers.Sync(r.Context(), body.StartDate.Time, body.EndDate.Time, body.filter())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	msg := fmt.Sprintf("sync completed for %s to %s", body.StartDate.Format(domain.DateLayout), body.EndDate.Format(domain.DateLayout))
	writeJSON(w, http.StatusOK, newSyncResponse(msg, res))
}

func (s *Server) SyncHistorical(w http.ResponseWriter, r *http.Request) {
	var body syncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.triggers.SyncHistorical(r.Context(), body.filter())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSyncResponse("historical sync completed", res))
}

func (s *Server) RecomputeAggregates(w http.ResponseWriter, r *http.Request) {
	f, ok := bindPeriodFilter(w, r)
	if !ok {
		return
	}
	// a JSON body {year, month} takes precedence over the query string
	var body struct {
		Year  *int `json:"year"`
		Month *int `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Year != nil {
		f.Year = body.Year
	}
	if body.Month != nil {
		f.Month = body.Month
	}
	stats, err := s.triggers.Recompute(r.Context(), f)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recomputeResponse{Success: true, Message: "monthly aggregates recomputed", Stats: stats})
}

func (s *Server) ListRates(w http.ResponseWriter, r *http.Request) {
	pair, ok := bindPair(w, r)
	if !ok {
		return
	}
	var (
		from, to *openapi_types.Date
		limit    *int
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "from", q, &from); err != nil {
		writeError(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "to", q, &to); err != nil {
		writeError(w, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	var (
		fromT, toT time.Time
		n          int
	)
	if limit != nil {
		n = *limit
	}
	if from != nil {
		fromT = from.Time
	}
	if to != nil {
		toT = to.Time
	}
	rows, err := s.queries.ListRates(r.Context(), pair, fromT, toT, n)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pair": pair.String(), "rates": toRateDTOs(rows)})
}

func (s *Server) LatestRates(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("pair") == "" {
		rows, err := s.queries.LatestRates(r.Context())
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rates": toRateDTOs(rows)})
		return
	}
	pair, ok := bindPair(w, r)
	if !ok {
		return
	}
	row, err := s.queries.LatestRate(r.Context(), pair)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(row))
}

func (s *Server) RateWithFallback(w http.ResponseWriter, r *http.Request) {
	pair, ok := bindPair(w, r)
	if !ok {
		return
	}
	var date openapi_types.Date
	if err := runtime.BindQueryParameter("form", true, true, "date", r.URL.Query(), &date); err != nil {
		writeError(w, http.StatusBadRequest, "date is required as YYYY-MM-DD")
		return
	}
	res, err := s.queries.RateWithFallback(r.Context(), pair, date.Time)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fallbackResponse{
		RequestedDate: res.RequestedDate.Format(domain.DateLayout),
		IsFallback:    res.IsFallback,
		Rate:          toRateDTO(res.Rate),
	})
}

func (s *Server) MonthlyAggregates(w http.ResponseWriter, r *http.Request) {
	f, ok := bindPeriodFilter(w, r)
	if !ok {
		return
	}
	rows, err := s.queries.MonthlyAggregates(r.Context(), f)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]aggregateDTO, 0, len(rows))
	for _, a := range rows {
		out = append(out, aggregateDTO{
			Pair:         a.Pair.String(),
			Year:         a.Period.Year,
			Month:        int(a.Period.Month),
			AvgRate:      a.AvgRate,
			MinRate:      a.MinRate,
			MaxRate:      a.MaxRate,
			DataPoints:   a.DataPoints,
			CalculatedAt: a.CalculatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"aggregates": out})
}

func bindPair(w http.ResponseWriter, r *http.Request) (domain.Pair, bool) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, true, "pair", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, "pair is required, e.g. USD/CLP")
		return domain.Pair{}, false
	}
	pair, err := domain.ParsePair(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return domain.Pair{}, false
	}
	return pair, true
}

func bindPeriodFilter(w http.ResponseWriter, r *http.Request) (domain.PeriodFilter, bool) {
	var f domain.PeriodFilter
	q := r.URL.Query()
	for name, dst := range map[string]**int{"year": &f.Year, "month": &f.Month} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dst); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
			return f, false
		}
	}
	return f, true
}
