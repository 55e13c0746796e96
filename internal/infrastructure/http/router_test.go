package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bcchrates-service/internal/application"
	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/memstore"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubSource map[string][]domain.Observation

func (s stubSource) FetchSeries(_ context.Context, id string, _, _ time.Time) ([]domain.Observation, error) {
	return s[id], nil
}

type stubLock struct{ held bool }

func (l stubLock) TryAcquire(context.Context, string) (bool, error) { return !l.held, nil }
func (l stubLock) Release(context.Context, string) error            { return nil }

var now = application.FixedClock{T: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}

func setup(t *testing.T, lock application.RunLock) (http.Handler, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	src := stubSource{
		"F073.TCO.PRE.Z.D": {
			{Date: "02-01-2025", Value: "950.25", StatusCode: "OK"},
			{Date: "03-01-2025", Value: "948.10", StatusCode: "OK"},
		},
		"F073.UFF.PRE.Z.D": {
			{Date: "02-01-2025", Value: "36280.45", StatusCode: "OK"},
		},
	}
	opts := []application.Option{application.WithClock(now)}
	deriver := application.NewDeriver(store, domain.DefaultCatalog.Pivot, opts...)
	aggregator := application.NewAggregator(store, store, opts...)
	engine := application.NewSyncEngine(store, src, domain.DefaultCatalog, deriver, aggregator, opts...)
	triggers := application.NewTriggers(engine, aggregator, lock, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), opts...)
	queries := application.NewQueryService(store, store, 0, opts...)

	srv := NewServer(triggers, queries)
	srv.SetMetricsHandler(promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	return NewRouter(srv), store
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestHealthz(t *testing.T) {
	h, _ := setup(t, nil)
	rec := do(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz_FailingCheck(t *testing.T) {
	store := memstore.New()
	srv := NewServer(nil, application.NewQueryService(store, store, 0))
	srv.SetReadyCheck(func(context.Context) error { return errors.New("db down") })
	rec := do(NewRouter(srv), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "unavailable", decodeError(t, rec).Code)
}

func TestSync_ThenQuery(t *testing.T) {
	h, store := setup(t, nil)

	rec := do(h, http.MethodPost, "/sync", `{"startDate":"2025-01-02","endDate":"2025-01-03"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"success", "message", "stats", "monthlyAveragesCalculated"} {
		require.Contains(t, raw, key)
	}
	var res syncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.Equal(t, "sync completed for 2025-01-02 to 2025-01-03", res.Message)
	require.Equal(t, 3, res.Stats.Inserted)
	require.Equal(t, 1, res.Stats.IndirectConversions)
	require.NotEmpty(t, res.RunID)
	// CLF/USD is derived only and gets no aggregate
	require.Equal(t, &monthlyDTO{Periods: 2, CurrencyPairs: 2}, res.MonthlyAveragesCalculated)
	require.Equal(t, 4, store.DailyRateCount())

	rec = do(h, http.MethodGet, "/rates?pair=USD/CLP&from=2025-01-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Pair  string    `json:"pair"`
		Rates []rateDTO `json:"rates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Rates, 1)
	require.True(t, list.Rates[0].Rate.Equal(decimal.RequireFromString("948.10")))

	rec = do(h, http.MethodGet, "/rates/fallback?pair=CLF/USD&date=2025-01-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fb fallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fb))
	require.True(t, fb.IsFallback)
	require.Equal(t, "2025-01-02", fb.Rate.Date)
	require.True(t, fb.Rate.Rate.Equal(decimal.RequireFromString("38.17990003")))
	require.Len(t, fb.Rate.ConversionChain, 2)

	rec = do(h, http.MethodGet, "/aggregates?year=2025&month=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var aggs struct {
		Aggregates []aggregateDTO `json:"aggregates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &aggs))
	// derived CLF/USD rows never produce an aggregate
	require.Len(t, aggs.Aggregates, 2)

	rec = do(h, http.MethodGet, "/rates/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSync_EmptyPairsSelectsNothing(t *testing.T) {
	h, store := setup(t, nil)
	rec := do(h, http.MethodPost, "/sync", `{"startDate":"2025-01-02","endDate":"2025-01-03","pairFilter":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, store.DailyRateCount())
	require.NotContains(t, rec.Body.String(), "monthlyAveragesCalculated")

	rec = do(h, http.MethodPost, "/sync", `{"startDate":"2025-01-02","endDate":"2025-01-03","pairs":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, store.DailyRateCount())
}

func TestSync_PairFilter(t *testing.T) {
	h, store := setup(t, nil)
	rec := do(h, http.MethodPost, "/sync", `{"startDate":"2025-01-02","endDate":"2025-01-03","pairFilter":["USD/CLP"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, store.DailyRateCount())
}

func TestSync_BadRequests(t *testing.T) {
	h, _ := setup(t, nil)

	rec := do(h, http.MethodPost, "/sync", `{"startDate":"2025-01-05","endDate":"2025-01-02"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "bad_request", decodeError(t, rec).Code)

	rec = do(h, http.MethodPost, "/sync", `{"startDate":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/sync", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSync_ConflictWhenLocked(t *testing.T) {
	h, _ := setup(t, stubLock{held: true})
	rec := do(h, http.MethodPost, "/sync", `{"startDate":"2025-01-02","endDate":"2025-01-03"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "conflict", decodeError(t, rec).Code)
}

func TestSyncHistorical_NoBody(t *testing.T) {
	h, store := setup(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/sync/historical", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 4, store.DailyRateCount())
}

func TestRecompute(t *testing.T) {
	h, _ := setup(t, nil)
	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/sync", `{"startDate":"2025-01-02","endDate":"2025-01-03"}`).Code)

	rec := do(h, http.MethodPost, "/aggregates/recompute?year=2025", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res recomputeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.NotEmpty(t, res.Message)
	require.Equal(t, application.AggregateStats{PeriodsProcessed: 2, CurrencyPairsProcessed: 2, RecordsUpdated: 2}, res.Stats)
	require.Contains(t, rec.Body.String(), `"currencyPairsProcessed":2`)

	rec = do(h, http.MethodPost, "/aggregates/recompute", `{"year":2024}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, application.AggregateStats{}, res.Stats)

	rec = do(h, http.MethodPost, "/aggregates/recompute", `{"month":13}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/aggregates/recompute?month=13", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/aggregates/recompute?month=jan", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueries_Errors(t *testing.T) {
	h, _ := setup(t, nil)

	rec := do(h, http.MethodGet, "/rates/fallback?pair=USD/CLP&date=2025-01-05", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Code)

	rec = do(h, http.MethodGet, "/rates?pair=USDCLP", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/rates", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/rates/fallback?pair=USD/CLP", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/rates/latest?pair=EUR/CLP", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	h, _ := setup(t, nil)
	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOpsRouter(t *testing.T) {
	h := NewOpsRouter(func(context.Context) error { return nil }, promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}), nil)

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)
	require.Equal(t, "READY", do(h, http.MethodGet, "/readyz", "").Body.String())
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", "").Code)

	rec := do(h, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestOpsRouter_Run(t *testing.T) {
	pending := false
	trigger := func() bool {
		if pending {
			return false
		}
		pending = true
		return true
	}
	h := NewOpsRouter(nil, nil, trigger)

	rec := do(h, http.MethodPost, "/run", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":true`)

	rec = do(h, http.MethodPost, "/run", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "conflict", decodeError(t, rec).Code)

	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/metrics", "").Code)
}
