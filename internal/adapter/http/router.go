package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iller75/BybitMover/internal/adapter/http/handler"
	"github.com/iller75/BybitMover/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ReportHandler *handler.ReportHandler
	HealthHandler *handler.HealthHandler

	// Optional.
	MetricsHandler    http.Handler
	MetricsMiddleware *middleware.MetricsMiddleware
	RateLimiter       *middleware.RateLimiter
	Logger            zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))

	if cfg.MetricsMiddleware != nil {
		r.Use(cfg.MetricsMiddleware.Wrap)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}

		r.Get("/transfers", cfg.ReportHandler.ListTransfers)
		r.Get("/summary", cfg.ReportHandler.Summary)
		r.Get("/ledger/consistency", cfg.ReportHandler.Consistency)
	})

	return r
}
