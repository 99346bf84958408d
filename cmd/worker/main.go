// Package main provides the entrypoint for the Guardian background worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/incidents"
	"github.com/guardian-safety/guardian/internal/incidents/cityfeed"
	"github.com/guardian-safety/guardian/internal/movement"
	"github.com/guardian-safety/guardian/internal/notify"
	"github.com/guardian-safety/guardian/internal/provider/resilience"
	"github.com/guardian-safety/guardian/internal/safety"
	"github.com/guardian-safety/guardian/internal/threat"
	"github.com/guardian-safety/guardian/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "guardian-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Guardian worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the incident feed (may run sourceless if not configured)
	var incidentSource incidents.IncidentSource
	var placesSource incidents.PlacesSource
	if feedURL := os.Getenv("CITYFEED_BASE_URL"); feedURL != "" {
		feedClient := resilience.NewClient(resilience.ClientConfig{
			Name:    cityfeed.ProviderName,
			Timeout: 10 * time.Second,
		})
		resilience.GlobalRegistry.Register(cityfeed.ProviderName, feedClient)

		feed := cityfeed.NewClient(cityfeed.ClientConfig{
			BaseURL:    feedURL,
			APIKey:     os.Getenv("CITYFEED_API_KEY"),
			HTTPClient: feedClient,
		})
		incidentSource = feed
		placesSource = feed
	}

	incidentService := incidents.NewService(incidents.ServiceConfig{
		Incidents: incidentSource,
		Places:    placesSource,
		Logger:    log,
	})

	safetyService := safety.NewService(safety.ServiceConfig{
		Incidents: incidentService,
		Logger:    log,
	})

	tracker := movement.NewTracker(movement.TrackerConfig{Logger: log})
	registry := threat.NewRegistry(threat.RegistryConfig{Logger: log})
	analyzer := threat.NewAnalyzer(threat.AnalyzerConfig{
		Safety:    safetyService,
		Incidents: incidentService,
		Movement:  tracker,
		Registry:  registry,
		Sinks:     []notify.Sink{notify.NewLogSink(log)},
		Logger:    log,
	})

	warmJob := worker.NewWarmJob(worker.WarmJobConfig{
		Config:          worker.DefaultWarmConfig(),
		Logger:          log,
		SafetyService:   safetyService,
		IncidentService: incidentService,
	})

	scheduler := worker.NewScheduler(worker.SchedulerConfig{
		WarmJob:   warmJob,
		Analyzer:  analyzer,
		Safety:    safetyService,
		Incidents: incidentService,
		Registry:  registry,
		Logger:    log,
	})

	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler stopped unexpectedly")
		}
	}()

	// Start the Pub/Sub job handler when configured
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		subscription := os.Getenv("JOB_SUBSCRIPTION")
		if subscription == "" {
			subscription = "guardian-jobs"
		}

		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			WarmJob:          warmJob,
			Analyzer:         analyzer,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped unexpectedly")
			}
		}()
	} else {
		log.Warn().Msg("pubsub not configured - running on schedule only")
	}

	// Create HTTP server for health checks
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
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
