// Package api provides the HTTP API for AirLens.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/api/handler"
	"github.com/airlens/airlens/internal/api/middleware"
	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/heatmap"
	"github.com/airlens/airlens/internal/route"
	"github.com/airlens/airlens/internal/sim"
	"github.com/airlens/airlens/internal/source/resilience"
	"github.com/airlens/airlens/internal/store"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	FusionEngine *fusion.Engine
	RouteEngine  *route.Engine
	Simulations  *sim.Registry
	Heatmaps     *heatmap.Cache
	Grids        store.GridRepository
	Readings     store.ReadingRepository
	FeedHealth   *resilience.HealthBoard
	DB           handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airlens-api"
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
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.FeedHealth, cfg.DB)
	readingsHandler := handler.NewReadingsHandler(cfg.FusionEngine)
	regionsHandler := handler.NewRegionsHandler(cfg.FusionEngine, cfg.Heatmaps, cfg.Grids, cfg.Readings)
	routesHandler := handler.NewRoutesHandler(cfg.RouteEngine)
	simulationsHandler := handler.NewSimulationsHandler(cfg.Simulations, cfg.Logger)

	// Rate limits per endpoint category
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min
	streamRateLimit := middleware.RateLimitByIP(middleware.StreamRateLimit)       // 10 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public, unmetered)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Point readings and forecasts fan out to upstream feeds
		r.With(expensiveRateLimit).Get("/readings", readingsHandler.GetReading)
		r.With(expensiveRateLimit).Get("/forecast", readingsHandler.GetForecast)

		// Route comparison fuses both endpoints
		r.With(expensiveRateLimit).Get("/routes/compare", routesHandler.CompareRoutes)

		// Region catalogue and aggregates
		r.Route("/regions", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", regionsHandler.ListRegions)
			r.Route("/{region}", func(r chi.Router) {
				r.Get("/zones", regionsHandler.GetZones)
				r.Get("/hotspots", regionsHandler.GetHotspots)
				r.Get("/sensors", regionsHandler.GetSensors)
				r.Get("/heatmap", regionsHandler.GetHeatmap)
			})
		})

		// Simulation sessions
		r.Route("/simulations", func(r chi.Router) {
			r.With(streamRateLimit).Post("/", simulationsHandler.CreateSimulation)
			r.Route("/{id}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", simulationsHandler.GetSimulation)
				r.With(streamRateLimit).Get("/stream", simulationsHandler.StreamSimulation)
			})
		})
	})

	return r
}
