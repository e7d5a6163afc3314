// Package api serves the brand visibility dashboard API.
package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

const (
	serviceName = "senso-visibility"
	apiVersion  = "1.0.0"
)

// Deps are the collaborators behind the routes. Index, Metrics and Inngest
// are optional.
type Deps struct {
	Config    *config.Config
	Store     repository.Store
	Analyzer  services.AnalyzerService
	Analytics services.MetricsService
	Planner   services.PlannerService
	Provider  services.AIProvider
	Index     services.SearchIndexService
	Metrics   http.Handler
	Inngest   http.Handler
	Logger    zerolog.Logger
}

// NewRouter mounts the status routes, /metrics, /api/inngest and the huma
// API under /api.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"service":"` + serviceName + `","status":"running"}`))
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}
	if deps.Inngest != nil {
		router.Handle("/api/inngest", deps.Inngest)
	}

	router.Group(func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		}

		humaConfig := huma.DefaultConfig("Brand Visibility API", apiVersion)
		humaConfig.Info.Description = "Measures how often AI assistants mention a brand, its competitors and its sources."
		api := humachi.New(r, humaConfig)

		NewHandler(deps).Register(api)
	})

	return router
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
