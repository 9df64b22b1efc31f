package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/interbank/internal/adapter/http/handler"
	"github.com/iho/interbank/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler  *handler.AccountHandler
	TransferHandler *handler.TransferHandler
	B2BHandler      *handler.B2BHandler
	PeerHandler     *handler.PeerHandler
	JWKSHandler     *handler.JWKSHandler
	HealthHandler   *handler.HealthHandler
	Logger          zerolog.Logger
	RateLimit       float64
	RateBurst       int
}

// NewRouter creates the HTTP router. Three surfaces share it: the
// customer API under /api/v1, the peer-facing settlement endpoints
// (/api/b2b and the well-known key set), and operational endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)

	if cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Limit)
	}

	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Published so peers can verify our signed payloads.
	r.Get("/.well-known/jwks.json", cfg.JWKSHandler.KeySet)

	// Peer-to-peer settlement surface.
	r.Route("/api/b2b", func(r chi.Router) {
		r.Post("/transfer", cfg.B2BHandler.AcceptTransfer)
	})

	// Customer API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Get("/{id}/transfers", cfg.TransferHandler.ListByAccount)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", cfg.TransferHandler.Create)
			r.Get("/{id}", cfg.TransferHandler.Get)
		})

		r.Get("/peers/{prefix}", cfg.PeerHandler.Resolve)
	})

	return r
}
