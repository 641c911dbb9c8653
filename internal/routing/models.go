// Package routing synthesizes accessibility-aware pedestrian routes: scored
// straight-line candidates through nearby accessibility facilities.
package routing

import (
	"errors"

	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrInvalidInput indicates a missing or out-of-range start or end coordinate.
	ErrInvalidInput = errors.New("invalid route input")
)

// Kind identifies how a candidate route was built.
type Kind string

const (
	// KindRecommended routes through accessible facilities in the corridor and
	// reports blocked ones.
	KindRecommended Kind = "recommended"
	// KindShortest is the direct start to end line.
	KindShortest Kind = "shortest"
	// KindAccessiblePriority routes through the accessible facilities nearest
	// to the start, anywhere in the input.
	KindAccessiblePriority Kind = "accessible_priority"
)

// WarningKind classifies a route warning.
type WarningKind string

const (
	// WarningBlockedNearby reports blocked facilities inside the route corridor.
	WarningBlockedNearby WarningKind = "blocked_nearby"
)

// Waypoint is one stop along a route. Start and end waypoints carry no
// facility reference.
type Waypoint struct {
	Location   geo.Coordinate
	Label      string
	FacilityID string          // empty for start and end
	Status     facility.Status // empty for start and end
}

// IsFacility reports whether the waypoint is an intermediate facility stop.
func (w Waypoint) IsFacility() bool {
	return w.FacilityID != ""
}

// Warning describes a condition the traveller should know about.
type Warning struct {
	Kind        WarningKind
	Message     string
	FacilityIDs []string
	Locations   []geo.Coordinate
}

// Route is a synthesized candidate. Routes are immutable once returned and
// may be shared between goroutines.
type Route struct {
	Name                     string
	Kind                     Kind
	Waypoints                []Waypoint
	TotalDistanceMeters      float64
	EstimatedDurationSeconds int
	Warnings                 []Warning
	Score                    int
}

// Start returns the first waypoint.
func (r Route) Start() Waypoint {
	return r.Waypoints[0]
}

// End returns the last waypoint.
func (r Route) End() Waypoint {
	return r.Waypoints[len(r.Waypoints)-1]
}

// Path returns the waypoint coordinates in order.
func (r Route) Path() []geo.Coordinate {
	path := make([]geo.Coordinate, len(r.Waypoints))
	for i, w := range r.Waypoints {
		path[i] = w.Location
	}
	return path
}

// Options tunes candidate synthesis.
type Options struct {
	// AvoidBlocked changes the blocked facility warning wording. Blocked
	// facilities are never chosen as waypoints and always reported.
	AvoidBlocked bool

	// PreferAccessible routes the recommended candidate through accessible
	// corridor facilities.
	PreferAccessible bool

	// MaxDetourMeters bounds how much longer than the direct line a
	// candidate may become by adding facility stops. Zero means no limit.
	MaxDetourMeters float64
}

// Config holds the synthesis thresholds and scoring constants.
type Config struct {
	CorridorMeters      float64 // on-route band around start to end (default: 100)
	WalkingSpeedMPS     float64 // duration estimate speed (default: 1.2)
	MaxRecommendedStops int     // accessible stops on the recommended route (default: 3)
	MaxPriorityStops    int     // accessible stops on the priority route (default: 5)
	BaseScore           int     // recommended starting score (default: 100)
	BlockedPenalty      int     // per blocked corridor facility (default: 10)
	AccessibleBonus     int     // per accessible corridor facility (default: 5)
	ShortestScore       int     // fixed (default: 60)
	PriorityScore       int     // fixed (default: 95)
}

// DefaultConfig returns the standard synthesis configuration.
func DefaultConfig() Config {
	return Config{
		CorridorMeters:      100,
		WalkingSpeedMPS:     1.2,
		MaxRecommendedStops: 3,
		MaxPriorityStops:    5,
		BaseScore:           100,
		BlockedPenalty:      10,
		AccessibleBonus:     5,
		ShortestScore:       60,
		PriorityScore:       95,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CorridorMeters <= 0 {
		c.CorridorMeters = d.CorridorMeters
	}
	if c.WalkingSpeedMPS <= 0 {
		c.WalkingSpeedMPS = d.WalkingSpeedMPS
	}
	if c.MaxRecommendedStops <= 0 {
		c.MaxRecommendedStops = d.MaxRecommendedStops
	}
	if c.MaxPriorityStops <= 0 {
		c.MaxPriorityStops = d.MaxPriorityStops
	}
	if c.BaseScore == 0 {
		c.BaseScore = d.BaseScore
	}
	if c.BlockedPenalty == 0 {
		c.BlockedPenalty = d.BlockedPenalty
	}
	if c.AccessibleBonus == 0 {
		c.AccessibleBonus = d.AccessibleBonus
	}
	if c.ShortestScore == 0 {
		c.ShortestScore = d.ShortestScore
	}
	if c.PriorityScore == 0 {
		c.PriorityScore = d.PriorityScore
	}
	return c
}
