package facility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accessroute/accessroute/internal/geo"
)

// metersPerDegreeLat is the approximate length of one degree of latitude.
const metersPerDegreeLat = 111320.0

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL facility repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a facility by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Facility, error) {
	query := `
		SELECT id, name, lat, lon, facility_type, status, updated_at
		FROM facilities
		WHERE id = $1
	`

	f, err := scanFacility(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}

	return f, nil
}

// FindNearby returns facilities within radiusMeters of center, nearest first.
// Candidates are selected by bounding box in SQL and filtered by exact
// great-circle distance afterwards.
func (r *PostgresRepository) FindNearby(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]Facility, error) {
	if err := validateQuery(center, radiusMeters); err != nil {
		return nil, err
	}

	dLat := radiusMeters / metersPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	dLon := 180.0
	if cosLat > 1e-6 {
		dLon = math.Min(radiusMeters/(metersPerDegreeLat*cosLat), 180)
	}

	query := `
		SELECT id, name, lat, lon, facility_type, status, updated_at
		FROM facilities
		WHERE lat BETWEEN $1 AND $2
		  AND lon BETWEEN $3 AND $4
	`

	rows, err := r.pool.Query(ctx, query,
		center.Lat-dLat, center.Lat+dLat,
		center.Lon-dLon, center.Lon+dLon,
	)
	if err != nil {
		return nil, fmt.Errorf("query nearby facilities: %w", err)
	}
	defer rows.Close()

	var facilities []Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return withinRadius(facilities, center, radiusMeters), nil
}

// UpdateStatus sets the live status of a facility.
// Updates older than the stored timestamp are rejected with ErrStaleUpdate.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	query := `
		UPDATE facilities
		SET status = $2, updated_at = $3
		WHERE id = $1 AND updated_at <= $3
	`

	tag, err := r.pool.Exec(ctx, query, id, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update facility status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing facility from an out-of-order update
	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM facilities WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrFacilityNotFound
	}
	return ErrStaleUpdate
}

// Ping verifies the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// scanFacility scans a facility from a query result.
func scanFacility(row pgx.Row) (*Facility, error) {
	var (
		f            Facility
		facilityType string
		status       string
	)

	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Location.Lat,
		&f.Location.Lon,
		&facilityType,
		&status,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Type = Type(facilityType)
	f.Status = Status(status)
	return &f, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
