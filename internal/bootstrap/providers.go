package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bcchrates-service/internal/application"
	"bcchrates-service/internal/config"
	"bcchrates-service/internal/domain"
	httpserver "bcchrates-service/internal/infrastructure/http"
	"bcchrates-service/internal/infrastructure/httpx"
	"bcchrates-service/internal/infrastructure/logx"
	"bcchrates-service/internal/infrastructure/memstore"
	"bcchrates-service/internal/infrastructure/metrics"
	"bcchrates-service/internal/infrastructure/notify"
	"bcchrates-service/internal/infrastructure/pg"
	"bcchrates-service/internal/infrastructure/provider"
	redisstore "bcchrates-service/internal/infrastructure/redis"
	"bcchrates-service/internal/infrastructure/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrMissingDBURL = errors.New("DATABASE_URL is required for STORAGE=pg")

// Store bundles the repositories of one storage backend.
type Store struct {
	Rates application.RateRepo
	Aggs  application.AggregateRepo
	Ping  func(ctx context.Context) error
}

// ServiceOptions are shared by every application service.
type ServiceOptions []application.Option

// WorkerApp is the scheduler plus the ops endpoints served next to it.
type WorkerApp struct {
	Worker application.Worker
	Ops    http.Handler
}

func ProvideConfig() (config.Config, error) { return config.Load() }

func ProvideLogger() *zap.Logger { return logx.L() }

func ProvideStore(ctx context.Context, log *zap.Logger, cfg config.Config) (Store, func(), error) {
	switch cfg.Storage {
	case "memory":
		s := memstore.New()
		log.Warn("store.memory", zap.String("note", "rates are lost on exit"))
		return Store{Rates: s, Aggs: s, Ping: s.Ping}, func() {}, nil
	case "pg":
		if cfg.DatabaseURL == "" {
			return Store{}, func() {}, ErrMissingDBURL
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return Store{}, func() {}, err
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return Store{}, func() {}, err
		}
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return Store{Rates: pg.NewRateRepo(db), Aggs: pg.NewAggregateRepo(db), Ping: db.Ping}, cleanup, nil
	default:
		return Store{}, func() {}, fmt.Errorf("unsupported STORAGE=%q", cfg.Storage)
	}
}

func ProvideRateSource(cfg config.Config) (application.RateSource, error) {
	switch cfg.Provider {
	case "bcch":
		return &provider.BCCh{
			BaseURL:  cfg.BCChBaseURL,
			User:     cfg.BCChUser,
			Password: cfg.BCChPass,
			Client: &httpx.Client{
				HTTP:       &http.Client{Timeout: cfg.RequestTimeout()},
				MaxElapsed: cfg.ProviderRetry(),
			},
		}, nil
	case "fake":
		return provider.NewFake(), nil
	default:
		return nil, fmt.Errorf("unsupported PROVIDER=%q", cfg.Provider)
	}
}

// ProvideCatalog restricts the built-in catalog to PAIRS when set.
func ProvideCatalog(cfg config.Config) (domain.Catalog, error) {
	catalog := domain.DefaultCatalog
	if len(cfg.Pairs) > 0 {
		catalog.Mappings = catalog.Select(cfg.Pairs)
		if len(catalog.Mappings) != len(cfg.Pairs) {
			return domain.Catalog{}, fmt.Errorf("PAIRS %v: %w", cfg.Pairs, domain.ErrUnsupportedPair)
		}
	}
	if err := catalog.Validate(); err != nil {
		return domain.Catalog{}, err
	}
	return catalog, nil
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *metrics.SyncMetrics {
	return metrics.NewSyncMetrics(reg)
}

func ProvideRunLock(cfg config.Config, log *zap.Logger) (application.RunLock, func(), error) {
	if cfg.LockBackend != "redis" {
		return application.NoopLock{}, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cleanup := func() {
		log.Info("closing redis")
		_ = client.Close()
	}
	return redisstore.NewLock(client, cfg.LockTTL), cleanup, nil
}

func ProvideNotifier(cfg config.Config, log *zap.Logger) (application.Notifier, func(), error) {
	logNotifier := &notify.LogNotifier{Log: log}
	if cfg.Notifier != "kafka" {
		return logNotifier, func() {}, nil
	}
	w := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	cleanup := func() {
		if err := w.Close(); err != nil {
			log.Warn("kafka.close_failed", zap.Error(err))
		}
	}
	return notify.Fanout{logNotifier, notify.NewKafkaNotifier(w)}, cleanup, nil
}

func ProvideServiceOptions(cfg config.Config, log *zap.Logger, m *metrics.SyncMetrics) (ServiceOptions, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return ServiceOptions{
		application.WithLogger(log),
		application.WithRecorder(m),
		application.WithLocation(loc),
	}, nil
}

func ProvideAggregator(s Store, opts ServiceOptions) *application.Aggregator {
	return application.NewAggregator(s.Rates, s.Aggs, opts...)
}

func ProvideDeriver(s Store, catalog domain.Catalog, opts ServiceOptions) *application.Deriver {
	return application.NewDeriver(s.Rates, catalog.Pivot, opts...)
}

func ProvideSyncEngine(s Store, src application.RateSource, catalog domain.Catalog, d *application.Deriver, a *application.Aggregator, opts ServiceOptions) *application.SyncEngine {
	return application.NewSyncEngine(s.Rates, src, catalog, d, a, opts...)
}

func ProvideTriggers(e *application.SyncEngine, a *application.Aggregator, lock application.RunLock, cfg config.Config, opts ServiceOptions) (*application.Triggers, error) {
	start, err := cfg.HistoricalStartDate()
	if err != nil {
		return nil, err
	}
	return application.NewTriggers(e, a, lock, start, opts...), nil
}

func ProvideQueryService(s Store, cfg config.Config, opts ServiceOptions) *application.QueryService {
	return application.NewQueryService(s.Rates, s.Aggs, cfg.QueryMaxLimit, opts...)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// readyCheck pings the store and, when it supports it, the run lock backend.
func readyCheck(s Store, lock application.RunLock) func(ctx context.Context) error {
	p, ok := lock.(pinger)
	if !ok {
		return s.Ping
	}
	return func(ctx context.Context) error {
		if err := s.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("run lock: %w", err)
		}
		return nil
	}
}

func ProvideHTTPServer(t *application.Triggers, q *application.QueryService, s Store, lock application.RunLock, reg *prometheus.Registry) *httpserver.Server {
	srv := httpserver.NewServer(t, q)
	srv.SetReadyCheck(readyCheck(s, lock))
	srv.SetMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return srv
}

func ProvideSupervisor(e *application.SyncEngine, a *application.Aggregator, n application.Notifier, lock application.RunLock, m *metrics.SyncMetrics, log *zap.Logger, cfg config.Config) (*worker.Supervisor, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	delays, err := cfg.RetryDelays()
	if err != nil {
		return nil, err
	}
	s := worker.NewSupervisor(e, a, n, lock, worker.SupervisorConfig{
		Hour:        cfg.ScheduleHour,
		Tick:        cfg.ScheduleTick,
		Location:    loc,
		MaxAttempts: cfg.SyncMaxAttempts,
		RetryDelays: delays,
	})
	s.Log = log
	s.Metrics = m
	return s, nil
}

func ProvideWorkerApp(s *worker.Supervisor, st Store, lock application.RunLock, reg *prometheus.Registry) WorkerApp {
	return WorkerApp{
		Worker: s,
		Ops:    httpserver.NewOpsRouter(readyCheck(st, lock), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), s.Trigger),
	}
}
