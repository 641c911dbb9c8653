package facility

import (
	"context"
	"sync"
	"time"

	"github.com/accessroute/accessroute/internal/geo"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local development. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu         sync.RWMutex
	facilities map[string]*Facility
}

// NewInMemoryRepository creates a new in-memory facility repository seeded with facilities.
func NewInMemoryRepository(seed ...Facility) *InMemoryRepository {
	r := &InMemoryRepository{
		facilities: make(map[string]*Facility, len(seed)),
	}
	for _, f := range seed {
		cpy := f
		r.facilities[f.ID] = &cpy
	}
	return r
}

// Put inserts or replaces a facility.
func (r *InMemoryRepository) Put(f Facility) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := f
	r.facilities[f.ID] = &cpy
}

// Get retrieves a facility by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.facilities[id]
	if !ok {
		return nil, ErrFacilityNotFound
	}

	// Return a copy
	cpy := *f
	return &cpy, nil
}

// FindNearby returns facilities within radiusMeters of center, nearest first.
func (r *InMemoryRepository) FindNearby(_ context.Context, center geo.Coordinate, radiusMeters float64) ([]Facility, error) {
	if err := validateQuery(center, radiusMeters); err != nil {
		return nil, err
	}

	r.mu.RLock()
	all := make([]Facility, 0, len(r.facilities))
	for _, f := range r.facilities {
		all = append(all, *f)
	}
	r.mu.RUnlock()

	return withinRadius(all, center, radiusMeters), nil
}

// UpdateStatus sets the live status of a facility.
// Updates older than the stored timestamp are rejected with ErrStaleUpdate.
func (r *InMemoryRepository) UpdateStatus(_ context.Context, id string, status Status, updatedAt time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.facilities[id]
	if !ok {
		return ErrFacilityNotFound
	}
	if updatedAt.Before(f.UpdatedAt) {
		return ErrStaleUpdate
	}

	f.Status = status
	f.UpdatedAt = updatedAt
	return nil
}

// Ping always succeeds for the in-memory repository.
func (r *InMemoryRepository) Ping(_ context.Context) error {
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
