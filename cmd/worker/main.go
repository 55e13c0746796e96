package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"bcchrates-service/internal/bootstrap"
	"bcchrates-service/internal/config"
	infraconfig "bcchrates-service/internal/infrastructure/config"
	"bcchrates-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	log := logx.L()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := bootstrap.InitWorker(ctx)
	if err != nil {
		log.Fatal("init worker", zap.Error(err))
	}
	defer cleanup()

	ops := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Ops,
		ReadHeaderTimeout: infraconfig.DefaultReadHeaderTimeout,
	}
	go func() {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops listener", zap.Error(err))
		}
	}()

	// Start blocks until the signal context is canceled and in-flight runs return.
	app.Worker.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), infraconfig.DefaultShutdownTimeout)
	defer cancel()
	_ = ops.Shutdown(shutdownCtx)
	log.Info("worker stopped")
}
