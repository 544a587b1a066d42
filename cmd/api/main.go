// Package main provides the entrypoint for the AirLens API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/api"
	"github.com/airlens/airlens/internal/api/handler"
	"github.com/airlens/airlens/internal/api/middleware"
	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geocode"
	"github.com/airlens/airlens/internal/heatmap"
	"github.com/airlens/airlens/internal/route"
	"github.com/airlens/airlens/internal/sim"
	"github.com/airlens/airlens/internal/source/firms"
	"github.com/airlens/airlens/internal/source/openaq"
	"github.com/airlens/airlens/internal/source/openweather"
	"github.com/airlens/airlens/internal/source/resilience"
	"github.com/airlens/airlens/internal/source/tomtom"
	"github.com/airlens/airlens/internal/source/waqi"
	"github.com/airlens/airlens/internal/store"
	"github.com/airlens/airlens/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airlens-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AirLens API")

	port := envOrDefault("APP_PORT", "8080")
	env := envOrDefault("APP_ENV", "development")
	otlpEndpoint := envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	ctx := context.Background()

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Upstream feed clients, one resilient HTTP client each.
	feedHealth := resilience.NewHealthBoard()
	feedClient := func(name string) *resilience.Client {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Health = feedHealth
		client := resilience.NewClient(cfg)
		feedHealth.Register(name, client)
		return client
	}

	airFeed := openaq.NewClient(openaq.ClientConfig{
		APIKey:     os.Getenv("OPENAQ_API_KEY"),
		HTTPClient: feedClient(openaq.SourceName),
		Logger:     log,
	})
	weatherFeed := openweather.NewClient(openweather.ClientConfig{
		APIKey:     os.Getenv("OPENWEATHER_API_KEY"),
		HTTPClient: feedClient(openweather.SourceName),
		Logger:     log,
	})
	backupFeed := waqi.NewClient(waqi.ClientConfig{
		Token:      os.Getenv("WAQI_TOKEN"),
		HTTPClient: feedClient(waqi.SourceName),
		Logger:     log,
	})
	trafficFeed := tomtom.NewClient(tomtom.ClientConfig{
		APIKey:     os.Getenv("TOMTOM_API_KEY"),
		HTTPClient: feedClient(tomtom.SourceName),
		Logger:     log,
	})
	fireFeed := firms.NewClient(firms.ClientConfig{
		APIKey:     os.Getenv("FIRMS_MAP_KEY"),
		HTTPClient: feedClient(firms.SourceName),
		Logger:     log,
	})
	geocoder := geocode.NewClient(geocode.ClientConfig{
		HTTPClient: feedClient("nominatim"),
		Logger:     log,
	})

	fusionEngine := fusion.NewEngine(fusion.EngineConfig{
		AirQuality: airFeed,
		Weather:    weatherFeed,
		Backup:     backupFeed,
		Traffic:    trafficFeed,
		Fire:       fireFeed,
		Geocoder:   geocoder,
		Logger:     log,
	})
	routeEngine := route.NewEngine(fusionEngine, log)
	simulations := sim.NewRegistry(sim.RegistryConfig{Logger: log})
	heatmaps := heatmap.NewCache()

	// Persisted readings and worker-generated grids back the heatmap
	// path. Without a database the API still serves everything fused on
	// demand.
	var readings store.ReadingRepository
	var grids store.GridRepository
	var db handler.Pinger
	if os.Getenv("DB_ENABLED") == "true" {
		dbConfig := store.ConfigFromEnv()
		pool, err := store.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		readings = store.NewPostgresRepository(pool)
		grids = store.NewPostgresGridRepository(pool)
		db = pool
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	} else {
		readings = store.NewMemoryRepository()
		grids = store.NewMemoryGridRepository()
		log.Info().Msg("database disabled, using in-memory reading store")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		FusionEngine: fusionEngine,
		RouteEngine:  routeEngine,
		Simulations:  simulations,
		Heatmaps:     heatmaps,
		Grids:        grids,
		Readings:     readings,
		FeedHealth:   feedHealth,
		DB:           db,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
