package facility

import (
	"context"
	"time"

	"github.com/accessroute/accessroute/internal/geo"
)

// Repository defines the interface for facility data persistence.
type Repository interface {
	// Get retrieves a facility by ID.
	Get(ctx context.Context, id string) (*Facility, error)

	// FindNearby returns facilities within radiusMeters of center.
	FindNearby(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]Facility, error)

	// UpdateStatus sets the live status of a facility.
	// Returns ErrFacilityNotFound if the facility doesn't exist.
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error

	// Ping verifies the repository backend is reachable.
	Ping(ctx context.Context) error
}
