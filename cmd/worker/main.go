// Package main provides the entrypoint for the AccessRoute facility status worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/config"
	"github.com/accessroute/accessroute/internal/database"
	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/telemetry"
	"github.com/accessroute/accessroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "accessroute-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AccessRoute worker")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.PubSubProjectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
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

	if err := run(ctx, cancel, cfg, log); err != nil {
		log.Error().Err(err).Msg("worker exited with error")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, log zerolog.Logger) error {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	// The API caches facilities separately; its cache expires on its own TTL
	// unless it consumes updates in-process.
	job := worker.NewStatusJob(worker.StatusJobDeps{
		Store:  facility.NewPostgresRepository(pool),
		Logger: log,
	})

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSubProjectID,
		SubscriptionName: cfg.PubSubSubscription,
		StatusJob:        job,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	defer handler.Close() //nolint:errcheck // best effort on shutdown

	// Worker also exposes a health endpoint for Cloud Run
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      healthMux(job),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
			cancel()
		}
	}()

	subErr := make(chan error, 1)
	go func() {
		subErr <- handler.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
	case <-ctx.Done():
	case err := <-subErr:
		if err != nil {
			runErr = fmt.Errorf("pubsub receive: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
	return runErr
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Applied int64  `json:"applied"`
	Skipped int64  `json:"skipped"`
	Failed  int64  `json:"failed"`
}

func healthMux(job *worker.StatusJob) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := job.HealthCheck(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		m := job.Metrics()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(healthResponse{ //nolint:errcheck // client gone
			Status:  status,
			Version: Version,
			Applied: m.Applied,
			Skipped: m.Skipped,
			Failed:  m.Failed,
		})
	})
	return mux
}
