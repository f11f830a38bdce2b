package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadbot/crm-assistant/internal/middleware"
	"github.com/leadbot/crm-assistant/pkg/logger"
)

// RoutesConfig wires the webhook server.
type RoutesConfig struct {
	JWTSecret      string
	AllowedOrigins []string

	RateLimitRequests     int
	RateLimitWindow       time.Duration
	UserRateLimitRequests int

	Health   *HealthHandler
	Messages *MessageHandler

	// Events is nil when the event stream is disabled.
	Events *EventHandler
}

// NewRouter builds the chi router for the webhook server.
func NewRouter(cfg RoutesConfig, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.With(middleware.UserRateLimit(cfg.UserRateLimitRequests, cfg.RateLimitWindow)).
			Post("/messages", cfg.Messages.Send)

		if cfg.Events != nil {
			r.With(middleware.RequireScope(middleware.ScopeLeadsRead)).
				Get("/leads/events", cfg.Events.List)
		}
	})

	return r
}
