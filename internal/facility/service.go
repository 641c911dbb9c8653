package facility

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/geo"
)

// radiusBucketMeters is the granularity at which search radii share cache entries.
const radiusBucketMeters = 500.0

// ServiceConfig holds configuration for the facility service.
type ServiceConfig struct {
	// Catalog is the facility data source.
	Catalog Catalog

	// Name identifies the catalog for logging and cache stats.
	Name string

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records catalog requests and cache hits (optional).
	Metrics *Metrics

	// CacheTTL is how long to cache nearby results (default: 1 minute).
	// Facility status is live data, so this is kept short.
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.01 ~ 1.1km).
	// Queries centered within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on catalog errors (default: 10 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service provides nearby facility lookups with caching.
// It implements Catalog.
type Service struct {
	catalog         Catalog
	name            string
	logger          zerolog.Logger
	metrics         *Metrics
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration

	mu          sync.RWMutex
	cache       map[string]*cachedNearby
	lastCleanup time.Time
}

type cachedNearby struct {
	facilities []Facility
	fetchedAt  time.Time
	expiresAt  time.Time
}

// NewService creates a new facility service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.01 // ~1.1km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 10 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	name := cfg.Name
	if name == "" {
		name = "facilities"
	}

	return &Service{
		catalog:         cfg.Catalog,
		name:            name,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		cache:           make(map[string]*cachedNearby),
	}
}

// FindNearby returns facilities within radiusMeters of center, nearest first.
//
// The catalog is queried once per grid cell and radius bucket with a radius
// large enough to cover any center inside the cell; each caller then gets the
// exact-radius subset.
func (s *Service) FindNearby(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]Facility, error) {
	if err := validateQuery(center, radiusMeters); err != nil {
		return nil, err
	}

	cellCenter, fetchRadius, cacheKey := s.cacheKey(center, radiusMeters)

	// Check cache (read lock)
	s.mu.RLock()
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().
			Str("cache_key", cacheKey).
			Msg("cache hit for nearby facilities")
		s.metrics.RecordCacheHit(s.name)
		return withinRadius(cached.facilities, center, radiusMeters), nil
	}
	s.mu.RUnlock()

	facilities, err := s.fetchNearby(ctx, cellCenter, fetchRadius, cacheKey)
	if err != nil {
		return nil, err
	}
	return withinRadius(facilities, center, radiusMeters), nil
}

// fetchNearby fetches facilities from the catalog and updates cache.
func (s *Service) fetchNearby(ctx context.Context, center geo.Coordinate, radiusMeters float64, cacheKey string) ([]Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check cache (prevents thundering herd)
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		s.logger.Debug().
			Str("cache_key", cacheKey).
			Msg("cache hit after double-check")
		s.metrics.RecordCacheHit(s.name)
		return cached.facilities, nil
	}

	s.logger.Debug().
		Float64("lat", center.Lat).
		Float64("lon", center.Lon).
		Float64("radius_m", radiusMeters).
		Str("catalog", s.name).
		Msg("fetching nearby facilities from catalog")

	s.metrics.RecordCacheMiss(s.name)
	start := time.Now()
	facilities, err := s.catalog.FindNearby(ctx, center, radiusMeters)
	s.metrics.RecordRequest(s.name, time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", center.Lat).
			Float64("lon", center.Lon).
			Float64("radius_m", radiusMeters).
			Msg("failed to fetch nearby facilities")

		// Check for stale data (stale-if-error pattern)
		if cached, ok := s.cache[cacheKey]; ok {
			if time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
				s.logger.Warn().
					Time("fetched_at", cached.fetchedAt).
					Str("cache_key", cacheKey).
					Msg("serving stale facility data due to catalog error")
				return cached.facilities, nil
			}
		}

		return nil, err
	}

	now := time.Now()
	s.cache[cacheKey] = &cachedNearby{
		facilities: facilities,
		fetchedAt:  now,
		expiresAt:  now.Add(s.cacheTTL),
	}

	s.logger.Debug().
		Str("cache_key", cacheKey).
		Int("facility_count", len(facilities)).
		Msg("cached nearby facilities")

	s.cleanupIfNeeded()

	return facilities, nil
}

// cacheKey quantizes the query to a grid cell and radius bucket.
// It returns the cell center and a fetch radius that covers the requested
// radius from anywhere in the cell.
// Format: {gridLat},{gridLon}:{bucketRadius}.
func (s *Service) cacheKey(center geo.Coordinate, radiusMeters float64) (geo.Coordinate, float64, string) {
	gridLat := math.Floor(center.Lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(center.Lon/s.cacheGridSize) * s.cacheGridSize
	bucket := math.Ceil(radiusMeters/radiusBucketMeters) * radiusBucketMeters

	cellCenter := geo.Coordinate{
		Lat: gridLat + s.cacheGridSize/2,
		Lon: gridLon + s.cacheGridSize/2,
	}
	// A degree of longitude is never longer than a degree of latitude, so the
	// latitude extent bounds the cell half-diagonal.
	halfDiagonal := s.cacheGridSize * metersPerDegreeLat * math.Sqrt2 / 2

	key := fmt.Sprintf("%.4f,%.4f:%.0f", gridLat, gridLon, bucket)
	return cellCenter, bucket + halfDiagonal, key
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		// Remove entries that are past the stale-if-error window
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired facility cache entries")
	}
}

// InvalidateCache clears all cached data.
// Called when facility status changes so the next lookup sees live data.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedNearby)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	stale := 0

	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		} else if now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			stale++
		}
	}

	return CacheStats{
		TotalEntries: len(s.cache),
		FreshEntries: fresh,
		StaleEntries: stale,
		Catalog:      s.name,
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Catalog      string
}

// Ensure Service implements Catalog interface.
var _ Catalog = (*Service)(nil)
