// Package main provides the entrypoint for the AirLens refresh worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geocode"
	"github.com/airlens/airlens/internal/source/firms"
	"github.com/airlens/airlens/internal/source/openaq"
	"github.com/airlens/airlens/internal/source/openweather"
	"github.com/airlens/airlens/internal/source/resilience"
	"github.com/airlens/airlens/internal/source/tomtom"
	"github.com/airlens/airlens/internal/source/waqi"
	"github.com/airlens/airlens/internal/store"
	"github.com/airlens/airlens/internal/telemetry"
	"github.com/airlens/airlens/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airlens-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AirLens worker")

	port := envOrDefault("APP_PORT", "8080")
	env := envOrDefault("APP_ENV", "development")
	otlpEndpoint := envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	feedHealth := resilience.NewHealthBoard()
	feedClient := func(name string) *resilience.Client {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Health = feedHealth
		client := resilience.NewClient(cfg)
		feedHealth.Register(name, client)
		return client
	}

	fusionEngine := fusion.NewEngine(fusion.EngineConfig{
		AirQuality: openaq.NewClient(openaq.ClientConfig{
			APIKey:     os.Getenv("OPENAQ_API_KEY"),
			HTTPClient: feedClient(openaq.SourceName),
			Logger:     log,
		}),
		Weather: openweather.NewClient(openweather.ClientConfig{
			APIKey:     os.Getenv("OPENWEATHER_API_KEY"),
			HTTPClient: feedClient(openweather.SourceName),
			Logger:     log,
		}),
		Backup: waqi.NewClient(waqi.ClientConfig{
			Token:      os.Getenv("WAQI_TOKEN"),
			HTTPClient: feedClient(waqi.SourceName),
			Logger:     log,
		}),
		Traffic: tomtom.NewClient(tomtom.ClientConfig{
			APIKey:     os.Getenv("TOMTOM_API_KEY"),
			HTTPClient: feedClient(tomtom.SourceName),
			Logger:     log,
		}),
		Fire: firms.NewClient(firms.ClientConfig{
			APIKey:     os.Getenv("FIRMS_MAP_KEY"),
			HTTPClient: feedClient(firms.SourceName),
			Logger:     log,
		}),
		Geocoder: geocode.NewClient(geocode.ClientConfig{
			HTTPClient: feedClient("nominatim"),
			Logger:     log,
		}),
		Logger: log,
	})

	var readings store.ReadingRepository
	var grids store.GridRepository
	if os.Getenv("DB_ENABLED") == "true" {
		dbConfig := store.ConfigFromEnv()
		pool, err := store.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		readings = store.NewPostgresRepository(pool)
		grids = store.NewPostgresGridRepository(pool)
		log.Info().
			Str("host", dbConfig.Host).
			Str("database", dbConfig.Database).
			Msg("database connected")
	} else {
		log.Warn().Msg("database disabled, refreshed readings and grids are not persisted")
	}

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Logger:   log,
		Engine:   fusionEngine,
		Readings: readings,
		Grids:    grids,
	})

	// Either a Pub/Sub scheduler or a local ticker owns the cadence.
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		subscription := envOrDefault("PUBSUB_SUBSCRIPTION", "airlens-refresh")
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
		log.Info().
			Str("project", projectID).
			Str("subscription", subscription).
			Msg("pubsub trigger enabled")
	} else {
		interval, err := time.ParseDuration(envOrDefault("REFRESH_INTERVAL", "10m"))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REFRESH_INTERVAL")
		}

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			refreshJob.Run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					refreshJob.Run(ctx)
				}
			}
		}()
		log.Info().Dur("interval", interval).Msg("local refresh ticker enabled")
	}

	// Small HTTP surface for orchestrator health probes.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"OK","version":"` + Version + `"}`))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
