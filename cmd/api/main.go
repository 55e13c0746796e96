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
	httpserver "bcchrates-service/internal/infrastructure/http"
	"bcchrates-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	logger := logx.L()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	addr := ":" + cfg.Port

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := bootstrap.InitAPI(ctx)
	if err != nil {
		logger.Fatal("bootstrap api", zap.Error(err))
	}
	defer cleanup()

	server := &http.Server{
		Addr:              addr,
		Handler:           httpserver.NewRouter(srv),
		ReadHeaderTimeout: infraconfig.DefaultReadHeaderTimeout,
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr), zap.String("storage", cfg.Storage), zap.String("provider", cfg.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), infraconfig.DefaultShutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
