// Package main provides the entrypoint for the aqplot server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aqplot/aqplot/internal/airquality"
	"github.com/aqplot/aqplot/internal/api"
	"github.com/aqplot/aqplot/internal/api/middleware"
	"github.com/aqplot/aqplot/internal/config"
	"github.com/aqplot/aqplot/internal/form"
	"github.com/aqplot/aqplot/internal/openaq"
	"github.com/aqplot/aqplot/internal/plot"
	"github.com/aqplot/aqplot/internal/provider/resilience"
	"github.com/aqplot/aqplot/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// formProviderName identifies the remote form in the provider registry.
const formProviderName = "form"

func main() {
	const serviceName = "aqplot-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	// A missing .env file is fine; the environment may be set directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Bool("require_tls", cfg.RequireTLS).
		Msg("starting aqplot")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTelSampleRatio).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics(tp.MeterProvider())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics(tp.MeterProvider())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	registry := resilience.NewRegistry()

	// Initialize the OpenAQ client and chart service
	source := openaq.NewClient(openaq.ClientConfig{
		BaseURL:    cfg.OpenAQBaseURL,
		APIKey:     cfg.OpenAQAPIKey,
		Timeout:    cfg.OpenAQTimeout,
		MaxRetries: cfg.OpenAQMaxRetries,
		Registry:   registry,
		Metrics:    providerMetrics,
		Logger:     log,
	})
	charts := airquality.NewService(airquality.ServiceConfig{
		Source: source,
		Logger: log,
	})
	log.Info().
		Str("base_url", cfg.OpenAQBaseURL).
		Msg("openaq client initialized")

	// Initialize the query form
	formCfg := form.Config{Logger: log}
	if cfg.FormURL != "" {
		cb := resilience.DefaultCircuitBreakerConfig(formProviderName)
		cb.OnStateChange = resilience.LogStateChanges(log)
		formCfg.RemoteURL = cfg.FormURL
		formCfg.HTTPClient = resilience.NewClient(resilience.ClientConfig{
			Name:           formProviderName,
			Timeout:        5 * time.Second,
			MaxRetries:     1,
			CircuitBreaker: &cb,
			Registry:       registry,
		})
		log.Info().Str("form_url", cfg.FormURL).Msg("serving remote query form")
	}
	queryForm, err := form.New(formCfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize query form")
		os.Exit(1)
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		Charts:             charts,
		Form:               queryForm,
		Render:             plot.Options{Width: plot.DefaultWidth, Height: plot.DefaultHeight},
		Registry:           registry,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequireTLS:         cfg.RequireTLS,
		RemoteForm:         cfg.FormURL != "",
	})

	// Create HTTP server. A chart request fans out into several
	// upstream calls, so the write timeout is generous.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
