// Package api provides the HTTP API for AccessRoute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api/handler"
	"github.com/accessroute/accessroute/internal/api/middleware"
	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/navigation"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/routing"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// TokenValidator authenticates bearer tokens.
	TokenValidator middleware.TokenValidator

	Planner   *routing.Planner
	Synthesis routing.Config
	Catalog   facility.Catalog
	Sessions  *navigation.Store

	// Database and Registry feed the ops endpoints (optional).
	Database handler.Pinger
	Registry *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "accessroute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type
	r.Use(middleware.RequireJSON)                // Reject non-JSON request bodies

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Database:     cfg.Database,
		Registry:     cfg.Registry,
		SessionCount: sessionCount(cfg.Sessions),
		Logger:       cfg.Logger,
	})
	routeHandler := handler.NewRouteHandler(cfg.Planner, cfg.Synthesis, cfg.Logger)
	facilityHandler := handler.NewFacilityHandler(cfg.Catalog, cfg.Logger)
	navigationHandler := handler.NewNavigationHandler(cfg.Sessions, cfg.Synthesis, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.TokenValidator)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Route endpoints - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:plan", routeHandler.PlanRoutes)
		r.With(expensiveRateLimit).Post("/routes:export", routeHandler.ExportRoute)

		r.With(standardRateLimit).Get("/facilities", facilityHandler.ListNearby)

		// Navigation endpoints (authenticated) - user-based rate limiting
		r.Route("/navigation/sessions", func(r chi.Router) {
			r.Use(authMiddleware)
			userRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit) // 100 req/min per user
			fixRateLimit := middleware.RateLimitByUser(middleware.PositionFixRateLimit)

			r.With(userRateLimit).Post("/", navigationHandler.CreateSession)
			r.With(userRateLimit).Get("/{sessionId}", navigationHandler.GetSession)
			r.With(userRateLimit).Delete("/{sessionId}", navigationHandler.DeleteSession)
			r.With(fixRateLimit).Post("/{sessionId}/fixes", navigationHandler.PostFix)
		})
	})

	return r
}

func sessionCount(store *navigation.Store) func() int {
	if store == nil {
		return nil
	}
	return store.Len
}
