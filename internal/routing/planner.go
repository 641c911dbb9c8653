package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/geo"
)

const tracerName = "github.com/accessroute/accessroute/internal/routing"

// PlannerConfig holds configuration for the route planner.
type PlannerConfig struct {
	// Catalog supplies nearby facilities. Optional; without it every plan is
	// shortest-only.
	Catalog facility.Catalog

	// Synthesis holds the synthesis thresholds. Zero fields take defaults.
	Synthesis Config

	// LookupTimeout bounds the facility lookup (default: 3 seconds).
	LookupTimeout time.Duration

	// Logger for planner operations.
	Logger zerolog.Logger
}

// Planner looks up facilities around a trip and synthesizes candidates.
type Planner struct {
	catalog       facility.Catalog
	synthesizer   *Synthesizer
	lookupTimeout time.Duration
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// PlanResult is the outcome of planning a trip.
type PlanResult struct {
	Routes               []Route
	DirectDistanceMeters float64
	RecommendedIndex     int

	// FacilitiesConsidered is the number of facilities the catalog returned.
	FacilitiesConsidered int
	// Degraded is set when the facility lookup failed and the plan fell
	// back to an empty facility list.
	Degraded bool
}

// Recommended returns the route at RecommendedIndex.
func (p *PlanResult) Recommended() Route {
	return p.Routes[p.RecommendedIndex]
}

// NewPlanner creates a new route planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	lookupTimeout := cfg.LookupTimeout
	if lookupTimeout == 0 {
		lookupTimeout = 3 * time.Second
	}

	return &Planner{
		catalog:       cfg.Catalog,
		synthesizer:   NewSynthesizer(cfg.Synthesis),
		lookupTimeout: lookupTimeout,
		logger:        cfg.Logger,
		tracer:        otel.Tracer(tracerName),
	}
}

// Plan fetches facilities around start and end and returns the candidate
// routes. Facility lookup failures never fail the plan.
func (p *Planner) Plan(ctx context.Context, start, end geo.Coordinate, opts Options) (*PlanResult, error) {
	ctx, span := p.tracer.Start(ctx, "routing.Plan")
	defer span.End()

	if err := start.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid start")
		return nil, fmt.Errorf("%w: start: %w", ErrInvalidInput, err)
	}
	if err := end.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid end")
		return nil, fmt.Errorf("%w: end: %w", ErrInvalidInput, err)
	}

	direct := geo.Distance(start, end)
	facilities, degraded := p.lookup(ctx, start, end, direct)

	routes, err := p.synthesizer.Synthesize(start, end, facilities, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("route.direct_distance_m", direct),
		attribute.Int("route.facilities", len(facilities)),
		attribute.Int("route.candidates", len(routes)),
		attribute.Bool("route.degraded", degraded),
	)

	p.logger.Debug().
		Float64("direct_distance_m", direct).
		Int("facility_count", len(facilities)).
		Int("candidate_count", len(routes)).
		Bool("degraded", degraded).
		Msg("planned routes")

	return &PlanResult{
		Routes:               routes,
		DirectDistanceMeters: direct,
		RecommendedIndex:     0,
		FacilitiesConsidered: len(facilities),
		Degraded:             degraded,
	}, nil
}

// lookup queries the catalog around the trip midpoint.
func (p *Planner) lookup(ctx context.Context, start, end geo.Coordinate, direct float64) ([]facility.Facility, bool) {
	if p.catalog == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	center := geo.Midpoint(start, end)
	radius := facility.SearchRadius(direct)

	facilities, err := p.catalog.FindNearby(ctx, center, radius)
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		p.logger.Warn().
			Err(err).
			Float64("center_lat", center.Lat).
			Float64("center_lon", center.Lon).
			Float64("radius_m", radius).
			Msg("facility lookup failed, planning without facilities")
		return nil, true
	}
	return facilities, false
}
