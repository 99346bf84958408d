// Package api provides the HTTP API for Guardian.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/api/handler"
	"github.com/guardian-safety/guardian/internal/api/middleware"
	"github.com/guardian-safety/guardian/internal/auth"
	"github.com/guardian-safety/guardian/internal/grid"
	"github.com/guardian-safety/guardian/internal/inference"
	"github.com/guardian-safety/guardian/internal/movement"
	"github.com/guardian-safety/guardian/internal/provider/resilience"
	"github.com/guardian-safety/guardian/internal/safety"
	"github.com/guardian-safety/guardian/internal/threat"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	JWTService  *auth.JWTService

	Scorer   *grid.Scorer
	Safety   *safety.Service
	Tracker  *movement.Tracker
	Analyzer *threat.Analyzer
	Registry *threat.Registry

	// Optional subsystems surfaced by the ops status endpoint.
	Queue     *inference.Queue
	Providers *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "guardian-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Queue:     cfg.Queue,
		Providers: cfg.Providers,
		Safety:    cfg.Safety,
		Registry:  cfg.Registry,
	})
	gridHandler := handler.NewGridHandler(handler.GridHandlerConfig{
		Scorer: cfg.Scorer,
		Logger: cfg.Logger,
	})
	safetyHandler := handler.NewSafetyHandler(handler.SafetyHandlerConfig{
		Safety: cfg.Safety,
		Logger: cfg.Logger,
	})
	threatHandler := handler.NewThreatHandler(handler.ThreatHandlerConfig{
		Registry: cfg.Registry,
		Logger:   cfg.Logger,
	})
	movementHandler := handler.NewMovementHandler(handler.MovementHandlerConfig{
		Tracker:  cfg.Tracker,
		Analyzer: cfg.Analyzer,
		Logger:   cfg.Logger,
	})

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.JWTService)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Grid tessellation - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Get("/grid", gridHandler.GetGrid)

		// Safety analysis - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Get("/safety/analysis", safetyHandler.GetAnalysis)

		// Threat alerts (public read, standard rate limiting)
		r.Route("/threats", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", threatHandler.ListThreats)
			r.Delete("/{alertId}", threatHandler.DismissThreat)
		})

		// Location samples (authenticated) - user-based rate limiting
		r.Route("/location", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit)) // 100 req/min per user
			r.Post("/samples", movementHandler.IngestSample)
			r.Get("/track", movementHandler.GetTrack)
		})
	})

	return r
}
