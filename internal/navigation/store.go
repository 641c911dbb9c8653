package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/geo"
	"github.com/accessroute/accessroute/internal/routing"
)

// StoreConfig holds configuration for the session store.
type StoreConfig struct {
	// Session holds the thresholds for new sessions.
	Session Config

	// TTL is how long an idle session is kept (default: 30 minutes).
	TTL time.Duration

	// CleanupInterval is how often idle sessions are evicted (default: 1 minute).
	CleanupInterval time.Duration

	// Metrics records navigation events (optional).
	Metrics *Metrics

	// Logger for store operations.
	Logger zerolog.Logger

	// Now returns the current time (optional, for tests).
	Now func() time.Time
}

// Snapshot is a point-in-time copy of a stored session.
type Snapshot struct {
	ID                   string
	OwnerID              string
	Route                routing.Route
	CurrentWaypointIndex int
	Arrived              bool
	OffRoute             bool
	LastGuidanceAt       *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Store owns active navigation sessions. Fixes for the same session are
// serialized by a per-session lock; different sessions proceed in parallel.
type Store struct {
	cfg             Config
	ttl             time.Duration
	cleanupInterval time.Duration
	metrics         *Metrics
	logger          zerolog.Logger
	now             func() time.Time

	mu          sync.Mutex
	entries     map[string]*entry
	lastCleanup time.Time
}

type entry struct {
	mu         sync.Mutex
	id         string
	ownerID    string
	session    *Session
	createdAt  time.Time
	lastAccess time.Time
}

// NewStore creates a new session store.
func NewStore(cfg StoreConfig) *Store {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = time.Minute
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		cfg:             cfg.Session.withDefaults(),
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		now:             now,
		entries:         make(map[string]*entry),
		lastCleanup:     now(),
	}
}

// Create starts a session for ownerID along route.
func (s *Store) Create(ctx context.Context, ownerID string, route routing.Route) (Snapshot, error) {
	session, err := NewSessionWithConfig(route, s.cfg)
	if err != nil {
		return Snapshot{}, err
	}

	now := s.now()
	e := &entry{
		id:         uuid.New().String(),
		ownerID:    ownerID,
		session:    session,
		createdAt:  now,
		lastAccess: now,
	}

	s.mu.Lock()
	s.entries[e.id] = e
	s.mu.Unlock()

	s.cleanupIfNeeded(ctx)
	s.metrics.sessionStarted(ctx)

	s.logger.Info().
		Str("session_id", e.id).
		Str("route_kind", string(route.Kind)).
		Int("waypoints", len(route.Waypoints)).
		Msg("navigation session started")

	return e.snapshot(), nil
}

// Get returns the session state.
func (s *Store) Get(ctx context.Context, id, ownerID string) (Snapshot, error) {
	e, err := s.lookup(ctx, id, ownerID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// Feed applies a position fix to the session. A zero at uses the store clock.
func (s *Store) Feed(ctx context.Context, id, ownerID string, position geo.Coordinate, at time.Time) ([]Event, Snapshot, error) {
	e, err := s.lookup(ctx, id, ownerID)
	if err != nil {
		return nil, Snapshot{}, err
	}

	if at.IsZero() {
		at = s.now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wasArrived := e.session.Arrived()
	events, err := e.session.OnPositionFix(position, at)
	if err != nil {
		return nil, Snapshot{}, err
	}
	e.lastAccess = s.now()

	s.metrics.recordEvents(ctx, events)
	if !wasArrived && e.session.Arrived() {
		s.logger.Info().
			Str("session_id", id).
			Msg("navigation session arrived")
	}

	return events, e.snapshot(), nil
}

// Delete stops and removes a session.
func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := s.lookup(ctx, id, ownerID); err != nil {
		return err
	}

	s.mu.Lock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.metrics.sessionEnded(ctx)
	s.logger.Info().Str("session_id", id).Msg("navigation session stopped")
	return nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// lookup returns a live entry owned by ownerID. Sessions owned by someone
// else are reported as not found.
func (s *Store) lookup(ctx context.Context, id, ownerID string) (*entry, error) {
	s.cleanupIfNeeded(ctx)

	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()

	if !ok || e.ownerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// cleanupIfNeeded evicts idle sessions if the cleanup interval has passed.
func (s *Store) cleanupIfNeeded(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		s.mu.Unlock()
		return
	}
	s.lastCleanup = now

	candidates := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		candidates = append(candidates, e)
	}
	s.mu.Unlock()

	var expired []string
	for _, e := range candidates {
		e.mu.Lock()
		idle := now.Sub(e.lastAccess) > s.ttl
		e.mu.Unlock()
		if idle {
			expired = append(expired, e.id)
		}
	}

	if len(expired) == 0 {
		return
	}

	removed := 0
	s.mu.Lock()
	for _, id := range expired {
		if _, ok := s.entries[id]; ok {
			delete(s.entries, id)
			removed++
		}
	}
	s.mu.Unlock()

	for i := 0; i < removed; i++ {
		s.metrics.sessionEnded(ctx)
	}
	s.logger.Debug().
		Int("expired", removed).
		Msg("evicted idle navigation sessions")
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		ID:                   e.id,
		OwnerID:              e.ownerID,
		Route:                e.session.Route(),
		CurrentWaypointIndex: e.session.CurrentWaypointIndex(),
		Arrived:              e.session.Arrived(),
		OffRoute:             e.session.OffRoute(),
		LastGuidanceAt:       e.session.LastGuidanceAt(),
		CreatedAt:            e.createdAt,
		UpdatedAt:            e.lastAccess,
	}
}
