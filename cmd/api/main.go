// Package main provides the entrypoint for the AccessRoute API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api"
	"github.com/accessroute/accessroute/internal/api/handler"
	"github.com/accessroute/accessroute/internal/api/middleware"
	"github.com/accessroute/accessroute/internal/auth"
	"github.com/accessroute/accessroute/internal/config"
	"github.com/accessroute/accessroute/internal/database"
	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/facility/remote"
	"github.com/accessroute/accessroute/internal/navigation"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/routing"
	"github.com/accessroute/accessroute/internal/telemetry"
	"github.com/accessroute/accessroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "accessroute-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AccessRoute API")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTelSampleRatio).
			Msg("OpenTelemetry initialized")
	}

	if err := run(ctx, cfg, log, serviceName); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger, serviceName string) error {
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing http metrics: %w", err)
	}
	facilityMetrics, err := facility.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing facility metrics: %w", err)
	}
	navMetrics, err := navigation.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing navigation metrics: %w", err)
	}

	registry := resilience.NewRegistry()

	src, err := openCatalog(ctx, cfg, registry, log)
	if err != nil {
		return err
	}
	var db handler.Pinger
	if src.pool != nil {
		defer src.pool.Close()
		db = src.pool
	}

	facilities := facility.NewService(facility.ServiceConfig{
		Catalog: src.catalog,
		Name:    string(cfg.FacilitySource),
		Logger:  log,
		Metrics: facilityMetrics,
	})
	log.Info().
		Str("source", string(cfg.FacilitySource)).
		Msg("facility service initialized")

	subCtx, stopSubscriber := context.WithCancel(ctx)
	defer stopSubscriber()
	if cfg.PubSubAPISubscription != "" {
		if err := startStatusSubscriber(subCtx, cfg, src.store, facilities, log); err != nil {
			return err
		}
	}

	planner := routing.NewPlanner(routing.PlannerConfig{
		Catalog:   facilities,
		Synthesis: cfg.Routing,
		Logger:    log,
	})

	sessions := navigation.NewStore(navigation.StoreConfig{
		Session: cfg.Navigation,
		TTL:     cfg.SessionTTL,
		Metrics: navMetrics,
		Logger:  log,
	})

	if cfg.UsesDefaultSigningKey() {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(cfg.JWT)

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        httpMetrics,
		RequireTLS:     cfg.RequireTLS,
		TokenValidator: jwtService,
		Planner:        planner,
		Synthesis:      cfg.Routing,
		Catalog:        facilities,
		Sessions:       sessions,
		Database:       db,
		Registry:       registry,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// catalogSource is the configured facility backend. store is nil for the
// remote source; pool is set only for postgres.
type catalogSource struct {
	catalog facility.Catalog
	store   worker.StatusStore
	pool    *pgxpool.Pool
}

func openCatalog(ctx context.Context, cfg config.Config, registry *resilience.Registry, log zerolog.Logger) (catalogSource, error) {
	switch cfg.FacilitySource {
	case config.FacilitySourcePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return catalogSource{}, fmt.Errorf("connecting to database: %w", err)
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
		repo := facility.NewPostgresRepository(pool)
		return catalogSource{catalog: repo, store: repo, pool: pool}, nil

	case config.FacilitySourceRemote:
		log.Info().
			Str("base_url", cfg.FacilityCatalogURL).
			Msg("using remote facility catalog")
		client := remote.NewClient(remote.ClientConfig{
			BaseURL:  cfg.FacilityCatalogURL,
			APIKey:   cfg.FacilityCatalogKey,
			Registry: registry,
			Logger:   log,
		})
		return catalogSource{catalog: client}, nil

	default:
		log.Warn().Msg("using in-memory facility catalog - facilities are not persisted")
		repo := facility.NewInMemoryRepository()
		return catalogSource{catalog: repo, store: repo}, nil
	}
}

// startStatusSubscriber applies facility status updates in-process so the
// API's facility cache is invalidated as soon as a status changes.
func startStatusSubscriber(ctx context.Context, cfg config.Config, store worker.StatusStore, cache worker.CacheInvalidator, log zerolog.Logger) error {
	job := worker.NewStatusJob(worker.StatusJobDeps{
		Store:  store,
		Cache:  cache,
		Logger: log,
	})

	sub, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSubProjectID,
		SubscriptionName: cfg.PubSubAPISubscription,
		StatusJob:        job,
		Logger:           log,
	})
	if err != nil {
		return fmt.Errorf("creating status subscriber: %w", err)
	}

	go func() {
		defer sub.Close() //nolint:errcheck // best effort on shutdown
		if err := sub.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("status subscriber stopped")
		}
	}()
	return nil
}
