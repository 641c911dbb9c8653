// Package facility provides the accessibility facility catalog consumed by
// route synthesis: the facility model, the Catalog contract, repositories and a
// cached catalog service.
package facility

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/accessroute/accessroute/internal/geo"
)

// Sentinel errors for facility operations.
var (
	// ErrFacilityNotFound indicates no facility exists with the given ID.
	ErrFacilityNotFound = errors.New("facility not found")
	// ErrCatalogUnavailable indicates the facility catalog could not be reached.
	ErrCatalogUnavailable = errors.New("facility catalog unavailable")
	// ErrInvalidStatus indicates an unknown facility status value.
	ErrInvalidStatus = errors.New("invalid facility status")
	// ErrInvalidQuery indicates a bad center or radius for a nearby search.
	ErrInvalidQuery = errors.New("invalid nearby query")
	// ErrStaleUpdate indicates a status update older than the stored one.
	ErrStaleUpdate = errors.New("stale facility status update")
)

// Search radius bounds in meters.
const (
	// RadiusPaddingMeters is added to half the route length.
	RadiusPaddingMeters = 500.0
	// MaxRadiusMeters caps the search radius regardless of route length.
	MaxRadiusMeters = 5000.0
)

// Type is the kind of accessibility infrastructure.
type Type string

const (
	TypeParking      Type = "parking"
	TypeToilet       Type = "toilet"
	TypeRamp         Type = "ramp"
	TypeElevator     Type = "elevator"
	TypeLiftPlatform Type = "lift_platform"
)

// Status is the live operational status of a facility.
type Status string

const (
	StatusAccessible  Status = "accessible"
	StatusBlocked     Status = "blocked"
	StatusMaintenance Status = "maintenance"
	StatusOccupied    Status = "occupied"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAccessible, StatusBlocked, StatusMaintenance, StatusOccupied:
		return true
	}
	return false
}

// Valid reports whether t is a known facility type.
func (t Type) Valid() bool {
	switch t {
	case TypeParking, TypeToilet, TypeRamp, TypeElevator, TypeLiftPlatform:
		return true
	}
	return false
}

// Facility is a read-only snapshot of one accessibility facility.
type Facility struct {
	ID        string
	Name      string
	Location  geo.Coordinate
	Type      Type
	Status    Status
	UpdatedAt time.Time
}

// Catalog looks up facilities near a point.
type Catalog interface {
	// FindNearby returns facilities within radiusMeters of center.
	FindNearby(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]Facility, error)
}

// SearchRadius returns the catalog search radius for a route of the given
// length: half the length plus padding, capped at MaxRadiusMeters.
func SearchRadius(routeLengthMeters float64) float64 {
	return math.Min(routeLengthMeters/2+RadiusPaddingMeters, MaxRadiusMeters)
}

// Error provides detailed error information from a catalog provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrCatalogUnavailable)
}

// withinRadius filters facilities to those within radiusMeters of center,
// nearest first.
func withinRadius(facilities []Facility, center geo.Coordinate, radiusMeters float64) []Facility {
	type ranked struct {
		f    Facility
		dist float64
	}
	hits := make([]ranked, 0, len(facilities))
	for _, f := range facilities {
		if d := geo.Distance(center, f.Location); d <= radiusMeters {
			hits = append(hits, ranked{f: f, dist: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].f.ID < hits[j].f.ID
	})

	out := make([]Facility, len(hits))
	for i, h := range hits {
		out[i] = h.f
	}
	return out
}

func validateQuery(center geo.Coordinate, radiusMeters float64) error {
	if err := center.Validate(); err != nil {
		return errors.Join(ErrInvalidQuery, err)
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return ErrInvalidQuery
	}
	return nil
}
