package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/api/handlers"
	"github.com/cloo-solutions/bokai/internal/api/middleware"
	"github.com/cloo-solutions/bokai/internal/metrics"
)

const maxBodyBytes int64 = 10 * 1024 * 1024

type RouterConfig struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Resolver middleware.TenantResolver
	// Limiter is optional; without it tenant routes are not rate limited.
	Limiter middleware.Allower

	HealthHandler    *handlers.HealthHandler
	TenantHandler    *handlers.TenantHandler
	AskHandler       *handlers.AskHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	FeedbackHandler  *handlers.FeedbackHandler
	InsightsHandler  *handlers.InsightsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)
	r.Handle("/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Principal)

		r.Post("/tenants", cfg.TenantHandler.Create)

		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			r.Use(middleware.Tenant(cfg.Resolver))
			r.Use(middleware.SecurityHeaders)
			r.Use(middleware.RateLimit(cfg.Limiter, cfg.Metrics))

			r.Post("/ask", cfg.AskHandler.Ask)
			r.Post("/feedback", cfg.FeedbackHandler.Create)
			r.Get("/insights", cfg.InsightsHandler.Get)

			r.Route("/knowledge", func(r chi.Router) {
				r.Post("/", cfg.KnowledgeHandler.Create)
				r.Get("/", cfg.KnowledgeHandler.List)
				r.Get("/{docId}", cfg.KnowledgeHandler.Get)
				r.Post("/{docId}/reindex", cfg.KnowledgeHandler.Reindex)
				r.Get("/{docId}/original", cfg.KnowledgeHandler.Original)
			})
		})
	})

	return r
}
