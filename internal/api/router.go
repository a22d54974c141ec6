// Package api provides the HTTP API for aqplot.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aqplot/aqplot/internal/api/handler"
	"github.com/aqplot/aqplot/internal/api/middleware"
	"github.com/aqplot/aqplot/internal/api/response"
	"github.com/aqplot/aqplot/internal/openaq"
	"github.com/aqplot/aqplot/internal/plot"
	"github.com/aqplot/aqplot/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Charts builds chart data; Form serves the query form.
	Charts handler.ChartBuilder
	Form   handler.FormProvider
	Render plot.Options

	// RemoteForm lets the form submit to any HTTPS origin, since a form
	// fetched from elsewhere may point its action at another host.
	RemoteForm bool

	// Registry tracks upstream provider health for the ops endpoints.
	Registry *resilience.Registry

	// RateLimitPerMinute caps chart requests per client IP. Zero disables it.
	RateLimitPerMinute int
	RequireTLS         bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aqplot-api"
	}

	csp := middleware.ContentSecurityPolicy
	if cfg.RemoteForm {
		csp = middleware.FormContentSecurityPolicy("'self'", "https:")
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))          // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))        // Panic recovery
	r.Use(chimiddleware.RealIP)                   // Real IP extraction
	r.Use(middleware.SecurityHeadersWithCSP(csp)) // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))  // TLS enforcement

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no such route")
	})

	chartHandler := handler.NewChartHandler(handler.ChartHandlerConfig{
		Builder: cfg.Charts,
		Form:    cfg.Form,
		Render:  cfg.Render,
		Logger:  cfg.Logger,
	})
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, openaq.ProviderName)

	// Each chart request fans out into several upstream calls.
	chartRateLimit := middleware.RateLimitByIP(middleware.ChartRateLimit(cfg.RateLimitPerMinute))

	r.With(chartRateLimit).Get("/", chartHandler.Chart)
	r.With(chartRateLimit).Get("/chart", chartHandler.Chart)

	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	return r
}
