package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "fake", cfg.Provider)
	require.Equal(t, 9, cfg.ScheduleHour)
	require.Equal(t, time.Minute, cfg.ScheduleTick)
	require.Equal(t, 3, cfg.SyncMaxAttempts)
	require.Equal(t, 1000, cfg.QueryMaxLimit)
	require.Equal(t, 2*time.Hour, cfg.LockTTL)

	delays, err := cfg.RetryDelays()
	require.NoError(t, err)
	require.Equal(t, []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute}, delays)

	start, err := cfg.HistoricalStartDate()
	require.NoError(t, err)
	require.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestLoad_ListsAndDurations(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("PAIRS", "USD/CLP,CLF/CLP")
	t.Setenv("NOTIFIER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SYNC_RETRY_DELAYS", "1s, 2s")
	t.Setenv("REQUEST_TIMEOUT_MS", "2500")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"USD/CLP", "CLF/CLP"}, cfg.Pairs)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout())

	delays, err := cfg.RetryDelays()
	require.NoError(t, err)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestValidate(t *testing.T) {
	base := Config{
		Storage:         "memory",
		Provider:        "fake",
		LockBackend:     "none",
		Notifier:        "log",
		ScheduleHour:    9,
		SyncMaxAttempts: 3,
		SyncRetryDelays: "5m",
		Timezone:        "UTC",
		HistoricalStart: "2020-01-01",
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"unknown storage":   func(c *Config) { c.Storage = "mysql" },
		"pg without url":    func(c *Config) { c.Storage = "pg" },
		"bcch without auth": func(c *Config) { c.Provider = "bcch" },
		"kafka no brokers":  func(c *Config) { c.Notifier = "kafka" },
		"hour out of range": func(c *Config) { c.ScheduleHour = 24 },
		"zero attempts":     func(c *Config) { c.SyncMaxAttempts = 0 },
		"bad delay":         func(c *Config) { c.SyncRetryDelays = "5 minutes" },
		"bad timezone":      func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad start":         func(c *Config) { c.HistoricalStart = "01-01-2020" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
