package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/api"
	"github.com/cloo-solutions/outreachai/internal/api/handlers"
	"github.com/cloo-solutions/outreachai/internal/api/middleware"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
)

// DefaultMaxBodyBytes caps request bodies when RouterConfig leaves it unset.
const DefaultMaxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	// TokenValidator guards /v1. A nil validator leaves /v1 open.
	TokenValidator   middleware.TokenValidator
	Logger           *zap.Logger
	ResearchHandler  *handlers.ResearchHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	MaxBodyBytes     int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.TokenValidator != nil {
			r.Use(middleware.BearerAuth(cfg.TokenValidator))
		}

		r.Post("/research", cfg.ResearchHandler.Run)

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/search", cfg.KnowledgeHandler.Search)
			r.Post("/outreach", cfg.KnowledgeHandler.IndexOutreach)
			r.Get("/status", cfg.KnowledgeHandler.Status)
		})
	})

	return r
}
