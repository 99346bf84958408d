// Package main provides the entrypoint for the Guardian API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/api"
	"github.com/guardian-safety/guardian/internal/api/middleware"
	"github.com/guardian-safety/guardian/internal/auth"
	"github.com/guardian-safety/guardian/internal/database"
	"github.com/guardian-safety/guardian/internal/grid"
	"github.com/guardian-safety/guardian/internal/incidents"
	"github.com/guardian-safety/guardian/internal/incidents/cityfeed"
	"github.com/guardian-safety/guardian/internal/inference"
	"github.com/guardian-safety/guardian/internal/inference/restprovider"
	"github.com/guardian-safety/guardian/internal/movement"
	"github.com/guardian-safety/guardian/internal/notify"
	"github.com/guardian-safety/guardian/internal/provider/resilience"
	"github.com/guardian-safety/guardian/internal/safety"
	"github.com/guardian-safety/guardian/internal/telemetry"
	"github.com/guardian-safety/guardian/internal/threat"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "guardian-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Guardian API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
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

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to the alert archive when a database is configured; the
	// registry runs fully in-memory otherwise.
	var alertHistory threat.Repository
	if os.Getenv("DB_HOST") != "" {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		alertHistory = threat.NewPostgresRepository(pool)
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	} else {
		log.Warn().Msg("DB_HOST not set, alert history archival disabled")
	}

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
	})

	// Initialize the incident feed (may run sourceless if not configured)
	providers := resilience.GlobalRegistry

	var incidentSource incidents.IncidentSource
	var placesSource incidents.PlacesSource
	if feedURL := os.Getenv("CITYFEED_BASE_URL"); feedURL != "" {
		feedClient := resilience.NewClient(resilience.ClientConfig{
			Name:    cityfeed.ProviderName,
			Timeout: 10 * time.Second,
		})
		providers.Register(cityfeed.ProviderName, feedClient)

		feed := cityfeed.NewClient(cityfeed.ClientConfig{
			BaseURL:    feedURL,
			APIKey:     os.Getenv("CITYFEED_API_KEY"),
			HTTPClient: feedClient,
		})
		incidentSource = feed
		placesSource = feed
		log.Info().Msg("city incident feed initialized")
	} else {
		log.Warn().Msg("city incident feed not configured - incident context disabled")
	}

	incidentService := incidents.NewService(incidents.ServiceConfig{
		Incidents: incidentSource,
		Places:    placesSource,
		Logger:    log,
	})

	// Initialize the inference queue (may be nil if not configured)
	var queue *inference.Queue
	if inferenceURL := os.Getenv("INFERENCE_BASE_URL"); inferenceURL != "" {
		inferenceClient := resilience.NewClient(resilience.ClientConfig{
			Name:    restprovider.ProviderName,
			Timeout: 20 * time.Second,
		})
		providers.Register(restprovider.ProviderName, inferenceClient)

		queue = inference.NewQueue(inference.QueueConfig{
			Provider: restprovider.NewClient(restprovider.ClientConfig{
				BaseURL:    inferenceURL,
				APIKey:     os.Getenv("INFERENCE_API_KEY"),
				HTTPClient: inferenceClient,
			}),
			Logger: log,
		})
		defer queue.Close()
		log.Info().Msg("inference queue initialized")
	} else {
		log.Warn().Msg("inference endpoint not configured - AI-augmented analysis disabled")
	}

	// Initialize the safety aggregator and cell scorer
	safetyService := safety.NewService(safety.ServiceConfig{
		Incidents: incidentService,
		Inference: queue,
		Logger:    log,
	})
	scorer := grid.NewScorer(grid.ScorerConfig{Logger: log})
	log.Info().Msg("safety services initialized")

	// Initialize the movement tracker, alert registry, and threat analyzer
	tracker := movement.NewTracker(movement.TrackerConfig{Logger: log})

	registry := threat.NewRegistry(threat.RegistryConfig{
		Logger:  log,
		History: alertHistory,
	})

	sinks := []notify.Sink{notify.NewLogSink(log)}
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		topicID := os.Getenv("ALERT_TOPIC_ID")
		if topicID == "" {
			topicID = "guardian-alerts"
		}
		pubsubSink, sinkErr := notify.NewPubSubSink(ctx, notify.PubSubSinkConfig{
			ProjectID: projectID,
			TopicID:   topicID,
			Logger:    log,
		})
		if sinkErr != nil {
			log.Fatal().Err(sinkErr).Msg("failed to initialize pubsub sink")
		}
		defer pubsubSink.Close()
		sinks = append(sinks, pubsubSink)
		log.Info().Str("topic", topicID).Msg("pubsub alert sink initialized")
	}

	analyzer := threat.NewAnalyzer(threat.AnalyzerConfig{
		Safety:    safetyService,
		Incidents: incidentService,
		Movement:  tracker,
		Registry:  registry,
		Sinks:     sinks,
		Logger:    log,
	})
	log.Info().Msg("threat analyzer initialized")

	// Run the periodic analysis loop alongside the server
	analyzerCtx, stopAnalyzer := context.WithCancel(ctx)
	defer stopAnalyzer()
	go func() {
		if runErr := analyzer.Run(analyzerCtx); runErr != nil && analyzerCtx.Err() == nil {
			log.Error().Err(runErr).Msg("threat analyzer stopped unexpectedly")
		}
	}()

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		JWTService:  jwtService,
		Scorer:      scorer,
		Safety:      safetyService,
		Tracker:     tracker,
		Analyzer:    analyzer,
		Registry:    registry,
		Queue:       queue,
		Providers:   providers,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopAnalyzer()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
