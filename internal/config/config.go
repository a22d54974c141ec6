// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the service configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	OpenAQBaseURL    string
	OpenAQAPIKey     string
	OpenAQTimeout    time.Duration
	OpenAQMaxRetries uint64

	// FormURL, when set, is served as the query form instead of the
	// embedded one.
	FormURL string

	// RateLimitPerMinute caps chart requests per client IP. Zero disables it.
	RateLimitPerMinute int

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	// RequireTLS rejects plain-HTTP forwarded requests. It defaults to on
	// in production.
	RequireTLS bool
}

// FromEnv creates a Config from environment variables.
func FromEnv() (Config, error) {
	var errs []error

	logLevel, err := zerolog.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("OPENAQ_TIMEOUT", "10s"))
	if err != nil {
		errs = append(errs, fmt.Errorf("OPENAQ_TIMEOUT: %w", err))
	}

	maxRetries, err := strconv.ParseUint(getEnvOrDefault("OPENAQ_MAX_RETRIES", "3"), 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("OPENAQ_MAX_RETRIES: %w", err))
	}

	rateLimit, err := strconv.Atoi(getEnvOrDefault("RATE_LIMIT_PER_MINUTE", "30"))
	if err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err))
	} else if rateLimit < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE: must not be negative"))
	}

	sampleRatio, err := strconv.ParseFloat(getEnvOrDefault("OTEL_TRACES_SAMPLER_ARG", "1"), 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG: %w", err))
	} else if sampleRatio < 0 || sampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLER_ARG: must be between 0 and 1"))
	}

	cfg := Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Env:                getEnvOrDefault("APP_ENV", "development"),
		LogLevel:           logLevel,
		OpenAQBaseURL:      getEnvOrDefault("OPENAQ_BASE_URL", "https://api.openaq.org/v1"),
		OpenAQAPIKey:       os.Getenv("OPENAQ_API_KEY"),
		OpenAQTimeout:      timeout,
		OpenAQMaxRetries:   maxRetries,
		FormURL:            os.Getenv("FORM_URL"),
		RateLimitPerMinute: rateLimit,
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio:    sampleRatio,
	}
	cfg.RequireTLS = getEnvOrDefault("REQUIRE_TLS", strconv.FormatBool(cfg.IsProduction())) == "true"

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
