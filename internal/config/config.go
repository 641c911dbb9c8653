// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/accessroute/accessroute/internal/auth"
	"github.com/accessroute/accessroute/internal/database"
	"github.com/accessroute/accessroute/internal/navigation"
	"github.com/accessroute/accessroute/internal/routing"
)

// FacilitySource selects where facility data comes from.
type FacilitySource string

const (
	FacilitySourcePostgres FacilitySource = "postgres"
	FacilitySourceRemote   FacilitySource = "remote"
	FacilitySourceMemory   FacilitySource = "memory"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset outside production.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Config is the full service configuration.
type Config struct {
	Port        string
	Environment string
	RequireTLS  bool

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	JWT auth.JWTConfig

	FacilitySource     FacilitySource
	FacilityCatalogURL string
	FacilityCatalogKey string

	Database database.Config

	PubSubProjectID    string
	PubSubSubscription string
	// PubSubAPISubscription enables in-process status updates in the API.
	PubSubAPISubscription string

	Routing    routing.Config
	Navigation navigation.Config
	SessionTTL time.Duration
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesDefaultSigningKey reports whether the development JWT key is in use.
func (c Config) UsesDefaultSigningKey() bool {
	return c.JWT.SigningKey == DevSigningKey
}

// FromEnv reads configuration from environment variables. Malformed values
// are reported together; unset values take defaults.
func FromEnv() (Config, error) {
	p := &parser{}

	env := getEnvOrDefault("APP_ENV", "development")
	routingDefaults := routing.DefaultConfig()
	navDefaults := navigation.DefaultConfig()

	cfg := Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: env,
		RequireTLS:  p.bool("REQUIRE_TLS", env == "production"),

		OTelEnabled:     p.bool("OTEL_ENABLED", false),
		OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: p.float("OTEL_SAMPLE_RATIO", 1),

		JWT: auth.JWTConfig{
			SigningKey: getEnvOrDefault("JWT_SIGNING_KEY", DevSigningKey),
			Issuer:     os.Getenv("JWT_ISSUER"),
			Audience:   os.Getenv("JWT_AUDIENCE"),
		},

		FacilitySource:     FacilitySource(getEnvOrDefault("FACILITY_SOURCE", string(FacilitySourceMemory))),
		FacilityCatalogURL: os.Getenv("FACILITY_CATALOG_URL"),
		FacilityCatalogKey: os.Getenv("FACILITY_CATALOG_API_KEY"),

		Database: database.Config{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            p.int("DB_PORT", 5432),
			User:            getEnvOrDefault("DB_USER", "accessroute"),
			Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
			Database:        getEnvOrDefault("DB_NAME", "accessroute"),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		PubSubProjectID:       os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription:    getEnvOrDefault("PUBSUB_SUBSCRIPTION", "facility-status-worker"),
		PubSubAPISubscription: os.Getenv("PUBSUB_API_SUBSCRIPTION"),

		Routing: routingDefaults,
		Navigation: navigation.Config{
			ArrivalMeters:    p.float("NAV_ARRIVAL_METERS", navDefaults.ArrivalMeters),
			OffRouteMeters:   p.float("NAV_OFF_ROUTE_METERS", navDefaults.OffRouteMeters),
			GuidanceInterval: p.duration("NAV_GUIDANCE_INTERVAL", navDefaults.GuidanceInterval),
		},
		SessionTTL: p.duration("NAV_SESSION_TTL", 30*time.Minute),
	}
	cfg.Routing.CorridorMeters = p.float("ROUTE_CORRIDOR_METERS", routingDefaults.CorridorMeters)
	cfg.Routing.WalkingSpeedMPS = p.float("ROUTE_WALKING_SPEED_MPS", routingDefaults.WalkingSpeedMPS)

	if err := cfg.validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if len(p.errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(p.errs...))
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	switch c.FacilitySource {
	case FacilitySourcePostgres, FacilitySourceMemory:
	case FacilitySourceRemote:
		if c.FacilityCatalogURL == "" {
			errs = append(errs, errors.New("FACILITY_CATALOG_URL is required when FACILITY_SOURCE=remote"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown FACILITY_SOURCE %q", c.FacilitySource))
	}

	if c.PubSubAPISubscription != "" {
		if c.PubSubProjectID == "" {
			errs = append(errs, errors.New("PUBSUB_PROJECT_ID is required when PUBSUB_API_SUBSCRIPTION is set"))
		}
		if c.FacilitySource == FacilitySourceRemote {
			errs = append(errs, errors.New("PUBSUB_API_SUBSCRIPTION cannot be used with FACILITY_SOURCE=remote"))
		}
	}
	if c.IsProduction() && c.UsesDefaultSigningKey() {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO %v out of range [0, 1]", c.OTelSampleRatio))
	}
	if c.Routing.CorridorMeters <= 0 {
		errs = append(errs, errors.New("ROUTE_CORRIDOR_METERS must be positive"))
	}
	if c.Routing.WalkingSpeedMPS <= 0 {
		errs = append(errs, errors.New("ROUTE_WALKING_SPEED_MPS must be positive"))
	}

	return errors.Join(errs...)
}

// parser collects parse failures so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
