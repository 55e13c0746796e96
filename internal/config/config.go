package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	// Common
	Env      string `env:"ENV" env-default:"local"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	// API
	Port          string `env:"PORT" env-default:"8080"`
	Storage       string `env:"STORAGE" env-default:"pg"`
	DatabaseURL   string `env:"DATABASE_URL"`
	QueryMaxLimit int    `env:"QUERY_MAX_LIMIT" env-default:"1000"`
	// Provider
	Provider         string   `env:"PROVIDER" env-default:"fake"`
	BCChBaseURL      string   `env:"BCCH_BASE_URL" env-default:"https://si3.bcentral.cl/SieteRestWS/SieteRestWS.ashx"`
	BCChUser         string   `env:"BCCH_USER"`
	BCChPass         string   `env:"BCCH_PASS"`
	RequestTimeoutMS int      `env:"REQUEST_TIMEOUT_MS" env-default:"15000"`
	ProviderRetryMS  int      `env:"PROVIDER_RETRY_MS" env-default:"0"`
	Pairs            []string `env:"PAIRS" env-separator:","`
	// Scheduler
	ScheduleHour    int           `env:"SCHEDULE_HOUR" env-default:"9"`
	ScheduleTick    time.Duration `env:"SCHEDULE_TICK" env-default:"1m"`
	Timezone        string        `env:"TIMEZONE" env-default:"America/Santiago"`
	SyncMaxAttempts int           `env:"SYNC_MAX_ATTEMPTS" env-default:"3"`
	SyncRetryDelays string        `env:"SYNC_RETRY_DELAYS" env-default:"5m,15m,30m"`
	HistoricalStart string        `env:"HISTORICAL_START" env-default:"2020-01-01"`
	// Run lock
	LockBackend   string        `env:"LOCK_BACKEND" env-default:"none"`
	RedisAddr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	LockTTL       time.Duration `env:"LOCK_TTL" env-default:"2h"`
	// Notifications
	Notifier     string   `env:"NOTIFIER" env-default:"log"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" env-default:"bcchrates.runs"`
}

// Load reads the environment, applies defaults and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := oneOf("STORAGE", c.Storage, "pg", "memory"); err != nil {
		return err
	}
	if err := oneOf("PROVIDER", c.Provider, "bcch", "fake"); err != nil {
		return err
	}
	if err := oneOf("LOCK_BACKEND", c.LockBackend, "none", "redis"); err != nil {
		return err
	}
	if err := oneOf("NOTIFIER", c.Notifier, "log", "kafka"); err != nil {
		return err
	}
	if c.Storage == "pg" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORAGE=pg")
	}
	if c.Provider == "bcch" && (c.BCChUser == "" || c.BCChPass == "") {
		return fmt.Errorf("BCCH_USER and BCCH_PASS are required when PROVIDER=bcch")
	}
	if c.Notifier == "kafka" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when NOTIFIER=kafka")
	}
	if c.ScheduleHour < 0 || c.ScheduleHour > 23 {
		return fmt.Errorf("SCHEDULE_HOUR must be within 0-23, got %d", c.ScheduleHour)
	}
	if c.SyncMaxAttempts < 1 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be positive, got %d", c.SyncMaxAttempts)
	}
	if _, err := c.RetryDelays(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.HistoricalStartDate(); err != nil {
		return err
	}
	return nil
}

func oneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), v)
}

// RetryDelays parses SYNC_RETRY_DELAYS, e.g. "5m,15m,30m".
func (c Config) RetryDelays() ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(c.SyncRetryDelays, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("SYNC_RETRY_DELAYS: invalid delay %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c Config) HistoricalStartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.HistoricalStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("HISTORICAL_START: %w", err)
	}
	return t, nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c Config) ProviderRetry() time.Duration {
	return time.Duration(c.ProviderRetryMS) * time.Millisecond
}
