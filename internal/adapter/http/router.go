package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/transferengine/internal/adapter/http/handler"
	"github.com/iho/transferengine/internal/adapter/http/middleware"
	"github.com/iho/transferengine/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	AdminHandler    *handler.AdminHandler
	HealthHandler   *handler.HealthHandler

	// TokenVerifier enables bearer authentication. When nil the caller is
	// taken from the X-Owner-ID header.
	TokenVerifier middleware.TokenVerifier

	// Optional
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	HTTPMetrics      *middleware.HTTPMetrics
	MetricsHandler   http.Handler
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			r.Use(middleware.AuthMiddleware(cfg.TokenVerifier))
		} else {
			r.Use(middleware.HeaderIdentity)
		}

		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", cfg.TransferHandler.Submit)
			r.Get("/by-key/{key}", cfg.TransferHandler.GetByKey)
			r.Get("/{id}", cfg.TransferHandler.Get)
			r.Get("/{id}/postings", cfg.TransferHandler.Postings)
			r.Get("/{id}/history", cfg.TransferHandler.History)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Get("/{id}/postings", cfg.AccountHandler.Postings)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/accounts", cfg.AccountHandler.Open)
			r.Put("/accounts/{id}/status", cfg.AccountHandler.SetStatus)
			r.Post("/recovery", cfg.AdminHandler.RunRecovery)
			r.Get("/reconciliation", cfg.AdminHandler.Reconciliation)
		})
	})

	return r
}
