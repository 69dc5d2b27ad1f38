package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/internal/interfaces/http/handlers"
	"github.com/turtacn/shipcat-extractor/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	// Handlers
	ExtractionHandler *handlers.ExtractionHandler
	ConversionHandler *handlers.ConversionHandler
	DuplicatesHandler *handlers.DuplicatesHandler
	HealthHandler     *handlers.HealthHandler
	MetricsHandler    http.Handler

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	CORSMiddleware *middleware.CORSMiddleware
	RateLimiter    middleware.RateLimiter
	TenantConfig   middleware.TenantConfig

	Logger logging.Logger
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration. It wires global middleware, public health/metrics
// endpoints, and the authenticated API v1 extraction-domain resource group
// into a single http.Handler suitable for use with http.Server.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	// --- Global middleware (applied to every request) ---
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware.Handler)
	}
	r.Use(middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()))
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, middleware.DefaultRateLimitConfig()))
	}

	// --- Public endpoints (no auth) ---
	r.Group(func(pub chi.Router) {
		if cfg.HealthHandler != nil {
			pub.Get("/healthz", cfg.HealthHandler.Liveness)
			pub.Get("/readyz", cfg.HealthHandler.Readiness)
		}
		if cfg.MetricsHandler != nil {
			pub.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// --- API v1 (authenticated + tenant-scoped) ---
	r.Route("/api/v1", func(api chi.Router) {
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.Authenticate())
		}
		tenantCfg := cfg.TenantConfig
		if tenantCfg.HeaderName == "" {
			tenantCfg = middleware.DefaultTenantConfig()
		}
		api.Use(middleware.NewTenantMiddleware(tenantCfg, logger))

		registerExtractionRoutes(api, cfg.ExtractionHandler, cfg.ConversionHandler, cfg.DuplicatesHandler)
	})

	return r
}

// registerExtractionRoutes mounts the document-to-catalog extraction
// lifecycle under /documents.
func registerExtractionRoutes(r chi.Router, ext *handlers.ExtractionHandler, conv *handlers.ConversionHandler, dup *handlers.DuplicatesHandler) {
	if ext == nil {
		return
	}
	r.Route("/documents", func(dr chi.Router) {
		dr.Post("/extract", ext.Create)

		dr.Route("/extractions", func(er chi.Router) {
			er.Get("/", ext.List)

			er.Route("/{id}", func(item chi.Router) {
				item.Get("/", ext.Get)

				item.Route("/items/{item_id}", func(li chi.Router) {
					li.Post("/verify", ext.Verify)
				})

				if conv != nil {
					item.Post("/convert", conv.Convert)
				}
				if dup != nil {
					item.Get("/duplicates", dup.List)
				}
			})
		})
	})
}
