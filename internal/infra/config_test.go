package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sdengine")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "http://127.0.0.1:7860", cfg.UpstreamBaseURL)
	require.Equal(t, 1, cfg.ExecutorConcurrency)
	require.Equal(t, 5*time.Minute, cfg.JobTimeout)
	require.Equal(t, 1500*time.Millisecond, cfg.ProgressPollEvery)
	require.Equal(t, 500*time.Millisecond, cfg.DequeuePollEvery)
	require.Equal(t, time.Hour, cfg.JobRetention)
	require.Equal(t, 32, cfg.MaxQueuedGlobal)
	require.Equal(t, 3, cfg.MaxQueuedPerUser)
	require.Equal(t, 10*time.Minute, cfg.CatalogRefreshEvery)
	require.Equal(t, 5*time.Second, cfg.HTTPReadHeaderTimeout)
	require.Empty(t, cfg.AllowedOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sdengine")
	t.Setenv("UPSTREAM_BASE_URL", "http://gpu-box:7860/")
	t.Setenv("EXECUTOR_CONCURRENCY", "2")
	t.Setenv("MAX_QUEUED_GLOBAL", "64")
	t.Setenv("MAX_QUEUED_PER_USER", "10")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "http://gpu-box:7860/", cfg.UpstreamBaseURL)
	require.Equal(t, 2, cfg.ExecutorConcurrency)
	require.Equal(t, 64, cfg.MaxQueuedGlobal)
	require.Equal(t, 10, cfg.MaxQueuedPerUser)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsPerUserAboveGlobal(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sdengine")
	t.Setenv("MAX_QUEUED_GLOBAL", "2")
	t.Setenv("MAX_QUEUED_PER_USER", "5")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MAX_QUEUED_GLOBAL", "-1"},
		{"MAX_QUEUED_PER_USER", "0"},
		{"JOB_RETENTION_MINUTES", "-1"},
		{"RATE_LIMIT_PER_MINUTE", "-5"},
		{"JOB_TIMEOUT_SECONDS", "-30"},
		{"PROGRESS_POLL_MS", "0"},
		{"CATALOG_REFRESH_MINUTES", "-10"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/sdengine")
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadConfigSanitizesConcurrency(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sdengine")
	t.Setenv("EXECUTOR_CONCURRENCY", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 1, cfg.ExecutorConcurrency)
}
