// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	LogFormat string
	LogLevel  string

	CORSAllowedOrigins []string

	BookingRefPrefix string
	AdminEmail       string
	EmailEnabled     bool

	StoreQueryTimeout  time.Duration
	StoreRetryAttempts int
	StoreRetryBase     time.Duration

	CacheTTL       time.Duration
	IdempotencyTTL time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	TracingEndpoint      string
	TracingSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),

		LogFormat: valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:  valueOrDefault(k.String("LOG_LEVEL"), "info"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		BookingRefPrefix: valueOrDefault(k.String("BOOKING_REF_PREFIX"), "TOUR"),
		AdminEmail:       strings.TrimSpace(k.String("ADMIN_EMAIL")),
		EmailEnabled:     parseBool(k.String("EMAIL_ENABLED")),

		StoreQueryTimeout:  parseDuration(k.String("STORE_QUERY_TIMEOUT"), "5s"),
		StoreRetryAttempts: parseInt(k.String("STORE_RETRY_ATTEMPTS"), 3),
		StoreRetryBase:     parseDuration(k.String("STORE_RETRY_BASE"), "100ms"),

		CacheTTL:       parseDuration(k.String("CACHE_TTL"), "5m"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitRequests: parseInt(k.String("RATE_LIMIT_REQUESTS"), 30),
		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),

		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		TracingEndpoint:      strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		TracingSamplingRatio: parseFloat(k.String("TRACING_SAMPLING_RATIO"), 1),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
