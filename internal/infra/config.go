package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	UpstreamBaseURL     string
	UpstreamTimeout     time.Duration
	CatalogRefreshEvery time.Duration

	ExecutorConcurrency int
	JobTimeout          time.Duration
	ProgressPollEvery   time.Duration
	DequeuePollEvery    time.Duration
	JobRetention        time.Duration

	MaxQueuedGlobal  int
	MaxQueuedPerUser int
	ArtifactsDir     string

	HTTPReadTimeout       time.Duration
	HTTPReadHeaderTimeout time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
	RateLimitPerMin       int
	AllowedOrigins        []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		UpstreamBaseURL:     getEnv("UPSTREAM_BASE_URL", "http://127.0.0.1:7860"),
		UpstreamTimeout:     time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 300)),
		CatalogRefreshEvery: time.Minute * time.Duration(getEnvInt("CATALOG_REFRESH_MINUTES", 10)),

		ExecutorConcurrency: getEnvInt("EXECUTOR_CONCURRENCY", 1),
		JobTimeout:          time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 300)),
		ProgressPollEvery:   time.Millisecond * time.Duration(getEnvInt("PROGRESS_POLL_MS", 1500)),
		DequeuePollEvery:    time.Millisecond * time.Duration(getEnvInt("DEQUEUE_POLL_MS", 500)),
		JobRetention:        time.Minute * time.Duration(getEnvInt("JOB_RETENTION_MINUTES", 60)),

		MaxQueuedGlobal:  getEnvInt("MAX_QUEUED_GLOBAL", 32),
		MaxQueuedPerUser: getEnvInt("MAX_QUEUED_PER_USER", 3),
		ArtifactsDir:     os.Getenv("ARTIFACTS_DIR"),

		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPReadHeaderTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_HEADER_TIMEOUT_SECONDS", 5)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:        splitCSV(os.Getenv("ALLOWED_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ExecutorConcurrency < 1 {
		cfg.ExecutorConcurrency = 1
	}
	if cfg.MaxQueuedGlobal < 1 || cfg.MaxQueuedPerUser < 1 {
		return nil, fmt.Errorf("MAX_QUEUED_GLOBAL and MAX_QUEUED_PER_USER must be at least 1")
	}
	if cfg.MaxQueuedPerUser > cfg.MaxQueuedGlobal {
		return nil, fmt.Errorf("MAX_QUEUED_PER_USER must not exceed MAX_QUEUED_GLOBAL")
	}
	if cfg.JobRetention < 0 {
		return nil, fmt.Errorf("JOB_RETENTION_MINUTES must not be negative")
	}
	if cfg.RateLimitPerMin < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"UPSTREAM_TIMEOUT_SECONDS":         cfg.UpstreamTimeout,
		"CATALOG_REFRESH_MINUTES":          cfg.CatalogRefreshEvery,
		"JOB_TIMEOUT_SECONDS":              cfg.JobTimeout,
		"PROGRESS_POLL_MS":                 cfg.ProgressPollEvery,
		"DEQUEUE_POLL_MS":                  cfg.DequeuePollEvery,
		"HTTP_READ_TIMEOUT_SECONDS":        cfg.HTTPReadTimeout,
		"HTTP_READ_HEADER_TIMEOUT_SECONDS": cfg.HTTPReadHeaderTimeout,
		"HTTP_WRITE_TIMEOUT_SECONDS":       cfg.HTTPWriteTimeout,
		"HTTP_IDLE_TIMEOUT_SECONDS":        cfg.HTTPIdleTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive", name)
		}
	}

	return cfg, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
