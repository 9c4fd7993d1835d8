package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"duck-connect/internal/api"
	"duck-connect/internal/config"
	"duck-connect/internal/middleware"
)

// Router builds the HTTP handler: liveness at /healthz, readiness at
// /readyz and the table API under /v1. A nil limiter disables rate limiting.
func (a *App) Router(cfg *config.Config, logger *slog.Logger, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.readDB != nil {
			if err := a.readDB.PingContext(r.Context()); err != nil {
				logger.Warn("metastore not ready", "error", err)
				http.Error(w, "metastore unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ready"))
	})

	handler := api.NewHandler(a.Catalog, a.Query, a.Jobs, logger)
	r.Route("/v1", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Handler)
		}
		handler.Routes(r)
	})
	return r
}
