package httpserver

import (
	"context"
	"net/http"
	"time"

	"bcchrates-service/internal/infrastructure/logx"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "request_id"
const traceIDKey contextKey = "trace_id"

func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID())
	r.Use(traceID())
	r.Use(recoverer())
	r.Use(accessLog())

	mountOps(r, s.ping, s.metrics)

	r.Route("/sync", func(r chi.Router) {
		r.Post("/", s.Sync)
		r.Post("/historical", s.SyncHistorical)
	})
	r.Route("/rates", func(r chi.Router) {
		r.Get("/", s.ListRates)
		r.Get("/latest", s.LatestRates)
		r.Get("/fallback", s.RateWithFallback)
	})
	r.Route("/aggregates", func(r chi.Router) {
		r.Get("/", s.MonthlyAggregates)
		r.Post("/recompute", s.RecomputeAggregates)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// NewOpsRouter serves the health and metrics endpoints the worker process
// exposes next to the scheduler. A non-nil trigger is mounted as POST /run.
func NewOpsRouter(ping func(ctx context.Context) error, metrics http.Handler, trigger func() bool) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID())
	r.Use(recoverer())
	r.Use(accessLog())
	mountOps(r, ping, metrics)
	if trigger != nil {
		r.Post("/run", func(w http.ResponseWriter, _ *http.Request) {
			if !trigger() {
				writeError(w, http.StatusConflict, "a sync run is already running or requested")
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "message": "sync run requested"})
		})
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	return r
}

func mountOps(r chi.Router, ping func(ctx context.Context) error, metrics http.Handler) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "store not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
}

func requestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-ID")
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)
			ctx := context.WithValue(r.Context(), requestIDKey, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func traceID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := r.Header.Get("X-Trace-Id")
			if tid == "" {
				tid = uuid.NewString()
			}
			w.Header().Set("X-Trace-Id", tid)
			ctx := context.WithValue(r.Context(), traceIDKey, tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					rid, _ := r.Context().Value(requestIDKey).(string)
					logx.L().Error("http.panic_recovered", zap.Any("error", rec), zap.String("request_id", rid))
					writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func accessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(sr, r)
			rid, _ := r.Context().Value(requestIDKey).(string)
			tid, _ := r.Context().Value(traceIDKey).(string)
			logx.L().Info("http.request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sr.status),
				zap.String("request_id", rid),
				zap.String("trace_id", tid),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
