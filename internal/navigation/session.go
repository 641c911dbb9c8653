// Package navigation tracks a traveller's live position against a chosen
// route and emits arrival, off-route and guidance events.
package navigation

import (
	"errors"
	"fmt"
	"time"

	"github.com/accessroute/accessroute/internal/geo"
	"github.com/accessroute/accessroute/internal/routing"
)

// Sentinel errors for navigation operations.
var (
	// ErrInvalidRoute indicates a route with fewer than two waypoints.
	ErrInvalidRoute = errors.New("invalid navigation route")
	// ErrInvalidPosition indicates a non-finite or out-of-range position fix.
	ErrInvalidPosition = errors.New("invalid position fix")
	// ErrSessionNotFound indicates no active session exists with the given ID.
	ErrSessionNotFound = errors.New("navigation session not found")
)

// EventKind identifies a navigation event.
type EventKind string

const (
	EventWaypointArrived    EventKind = "waypoint_arrived"
	EventDestinationArrived EventKind = "destination_arrived"
	EventOffRoute           EventKind = "off_route"
	EventBackOnRoute        EventKind = "back_on_route"
	EventGuidance           EventKind = "guidance"
)

// Event is emitted by a position fix. WaypointIndex and Waypoint are set for
// waypoint arrivals, Message for guidance.
type Event struct {
	Kind          EventKind
	WaypointIndex int
	Waypoint      *routing.Waypoint
	Message       string
	At            time.Time
}

// Config holds the navigation thresholds.
type Config struct {
	ArrivalMeters    float64       // arrival radius around the next waypoint (default: 20)
	OffRouteMeters   float64       // corridor around the current leg (default: 50)
	GuidanceInterval time.Duration // minimum time between guidance messages (default: 10s)
}

// DefaultConfig returns the standard navigation thresholds.
func DefaultConfig() Config {
	return Config{
		ArrivalMeters:    20,
		OffRouteMeters:   50,
		GuidanceInterval: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ArrivalMeters <= 0 {
		c.ArrivalMeters = d.ArrivalMeters
	}
	if c.OffRouteMeters <= 0 {
		c.OffRouteMeters = d.OffRouteMeters
	}
	if c.GuidanceInterval <= 0 {
		c.GuidanceInterval = d.GuidanceInterval
	}
	return c
}

// Session is the navigation state for one route. It is not safe for
// concurrent use; callers serialize OnPositionFix per session.
type Session struct {
	route        routing.Route
	cfg          Config
	currentIndex int
	arrived      bool
	offRoute     bool
	throttle     *GuidanceThrottle
}

// NewSession starts navigation along route with the default thresholds.
func NewSession(route routing.Route) (*Session, error) {
	return NewSessionWithConfig(route, DefaultConfig())
}

// NewSessionWithConfig starts navigation along route. Zero config fields
// take defaults.
func NewSessionWithConfig(route routing.Route, cfg Config) (*Session, error) {
	if len(route.Waypoints) < 2 {
		return nil, fmt.Errorf("%w: %d waypoints", ErrInvalidRoute, len(route.Waypoints))
	}
	cfg = cfg.withDefaults()
	return &Session{
		route:    route,
		cfg:      cfg,
		throttle: NewGuidanceThrottle(cfg.GuidanceInterval),
	}, nil
}

// Route returns the route being navigated.
func (s *Session) Route() routing.Route { return s.route }

// CurrentWaypointIndex returns the index of the last waypoint reached.
func (s *Session) CurrentWaypointIndex() int { return s.currentIndex }

// Arrived reports whether the destination was reached.
func (s *Session) Arrived() bool { return s.arrived }

// OffRoute reports whether the traveller is latched off the current leg.
func (s *Session) OffRoute() bool { return s.offRoute }

// LastGuidanceAt returns when guidance was last emitted, or nil.
func (s *Session) LastGuidanceAt() *time.Time { return s.throttle.Last() }

// Next returns the waypoint being approached. ok is false once arrived.
func (s *Session) Next() (wp routing.Waypoint, ok bool) {
	if s.arrived || s.currentIndex+1 >= len(s.route.Waypoints) {
		return routing.Waypoint{}, false
	}
	return s.route.Waypoints[s.currentIndex+1], true
}

// OnPositionFix applies one position fix and returns the resulting events.
// Fixes must be delivered in non-decreasing time order. After arrival every
// call returns no events. On error the session is unchanged.
func (s *Session) OnPositionFix(position geo.Coordinate, now time.Time) ([]Event, error) {
	if len(s.route.Waypoints) < 2 || s.throttle == nil {
		return nil, ErrInvalidRoute
	}
	if err := position.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	if s.arrived {
		return []Event{}, nil
	}

	var events []Event
	waypoints := s.route.Waypoints

	next := waypoints[s.currentIndex+1]
	if geo.Distance(position, next.Location) < s.cfg.ArrivalMeters {
		if s.currentIndex+1 == len(waypoints)-1 {
			s.arrived = true
			return []Event{{Kind: EventDestinationArrived, WaypointIndex: s.currentIndex + 1, Waypoint: &next, At: now}}, nil
		}
		s.currentIndex++
		events = append(events, Event{Kind: EventWaypointArrived, WaypointIndex: s.currentIndex, Waypoint: &next, At: now})
	} else {
		curr := waypoints[s.currentIndex]
		dist, _ := geo.PointToSegment(position, curr.Location, next.Location)
		switch {
		case dist > s.cfg.OffRouteMeters && !s.offRoute:
			s.offRoute = true
			events = append(events, Event{Kind: EventOffRoute, At: now})
		case dist <= s.cfg.OffRouteMeters && s.offRoute:
			s.offRoute = false
			events = append(events, Event{Kind: EventBackOnRoute, At: now})
		}
	}

	next = waypoints[s.currentIndex+1]
	if msg, ok := s.throttle.Next(geo.Distance(position, next.Location), next.Label, now); ok {
		events = append(events, Event{Kind: EventGuidance, Message: msg, At: now})
	}

	if events == nil {
		events = []Event{}
	}
	return events, nil
}
