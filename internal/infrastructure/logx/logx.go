package logx

import (
	"os"
	"strings"

	"bcchrates-service/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		// A config error is reported by the process that loads it.
		cfg = config.Config{LogLevel: os.Getenv("LOG_LEVEL"), Env: os.Getenv("ENV")}
	}
	logger = build(cfg)
}

func build(cfg config.Config) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = true
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.LogLevel != "" {
		_ = zapCfg.Level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel)))
	}
	l, err := zapCfg.Build(zap.AddCaller())
	if err != nil {
		panic(err)
	}
	if cfg.Env != "" {
		l = l.With(zap.String("env", cfg.Env))
	}
	return l
}

// L returns the package-level logger instance.
func L() *zap.Logger {
	return logger
}
