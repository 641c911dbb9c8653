package routing

import (
	"fmt"
	"math"
	"sort"

	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/geo"
)

// Candidate display names.
const (
	nameRecommended        = "Recommended route"
	nameShortest           = "Shortest route"
	nameAccessiblePriority = "Accessible-priority route"

	labelStart       = "Start"
	labelDestination = "Destination"
)

// Synthesizer builds scored route candidates. It performs no I/O and is
// safe for concurrent use.
type Synthesizer struct {
	cfg Config
}

// NewSynthesizer creates a synthesizer. Zero config fields take defaults.
func NewSynthesizer(cfg Config) *Synthesizer {
	return &Synthesizer{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (s *Synthesizer) Config() Config {
	return s.cfg
}

// Synthesize builds the candidate routes from start to end in the order
// recommended, shortest, accessible-priority. Recommended is omitted when no
// facilities are given; accessible-priority is omitted when none of them is
// accessible. The shortest candidate is always present.
func (s *Synthesizer) Synthesize(start, end geo.Coordinate, facilities []facility.Facility, opts Options) ([]Route, error) {
	if err := start.Validate(); err != nil {
		return nil, fmt.Errorf("%w: start: %w", ErrInvalidInput, err)
	}
	if err := end.Validate(); err != nil {
		return nil, fmt.Errorf("%w: end: %w", ErrInvalidInput, err)
	}

	direct := geo.Distance(start, end)
	routes := make([]Route, 0, 3)

	if len(facilities) > 0 {
		routes = append(routes, s.recommended(start, end, direct, facilities, opts))
	}

	routes = append(routes, s.build(nameShortest, KindShortest, start, end, nil, s.cfg.ShortestScore))

	if accessible := nearestAccessible(start, facilities); len(accessible) > 0 {
		stops := s.selectStops(start, end, direct, accessible, s.cfg.MaxPriorityStops, opts.MaxDetourMeters)
		routes = append(routes, s.build(nameAccessiblePriority, KindAccessiblePriority, start, end, stops, s.cfg.PriorityScore))
	}

	return routes, nil
}

// recommended builds the corridor-aware candidate.
func (s *Synthesizer) recommended(start, end geo.Coordinate, direct float64, facilities []facility.Facility, opts Options) Route {
	var blocked, accessible []facility.Facility
	for _, f := range facilities {
		if d, _ := geo.PointToSegment(f.Location, start, end); d > s.cfg.CorridorMeters {
			continue
		}
		switch f.Status {
		case facility.StatusBlocked:
			blocked = append(blocked, f)
		case facility.StatusAccessible:
			accessible = append(accessible, f)
		}
	}

	var stops []facility.Facility
	if opts.PreferAccessible && len(accessible) > 0 {
		stops = s.selectStops(start, end, direct, sortByDistanceFrom(start, accessible), s.cfg.MaxRecommendedStops, opts.MaxDetourMeters)
	}

	score := s.cfg.BaseScore - s.cfg.BlockedPenalty*len(blocked) + s.cfg.AccessibleBonus*len(accessible)
	route := s.build(nameRecommended, KindRecommended, start, end, stops, score)

	if len(blocked) > 0 {
		route.Warnings = []Warning{blockedWarning(sortByDistanceFrom(start, blocked), opts.AvoidBlocked)}
	}
	return route
}

// selectStops greedily takes candidates in order until limit stops are
// chosen, skipping any whose insertion would exceed the detour budget.
func (s *Synthesizer) selectStops(start, end geo.Coordinate, direct float64, candidates []facility.Facility, limit int, maxDetour float64) []facility.Facility {
	stops := make([]facility.Facility, 0, limit)
	for _, f := range candidates {
		if len(stops) == limit {
			break
		}
		if maxDetour > 0 {
			trial := append(append([]facility.Facility(nil), stops...), f)
			if pathLength(start, end, trial)-direct > maxDetour {
				continue
			}
		}
		stops = append(stops, f)
	}
	return stops
}

// build assembles a route and derives its distance and duration.
func (s *Synthesizer) build(name string, kind Kind, start, end geo.Coordinate, stops []facility.Facility, score int) Route {
	waypoints := make([]Waypoint, 0, len(stops)+2)
	waypoints = append(waypoints, Waypoint{Location: start, Label: labelStart})
	for _, f := range stops {
		waypoints = append(waypoints, facilityWaypoint(f))
	}
	waypoints = append(waypoints, Waypoint{Location: end, Label: labelDestination})

	route := Route{
		Name:      name,
		Kind:      kind,
		Waypoints: waypoints,
		Score:     clampScore(score),
	}
	route.TotalDistanceMeters = geo.PathLength(route.Path())
	route.EstimatedDurationSeconds = EstimateDuration(route.TotalDistanceMeters, s.cfg.WalkingSpeedMPS)
	return route
}

// EstimateDuration returns the walking time in whole seconds, rounded up.
func EstimateDuration(distanceMeters, speedMPS float64) int {
	if distanceMeters <= 0 || speedMPS <= 0 {
		return 0
	}
	return int(math.Ceil(distanceMeters / speedMPS))
}

func facilityWaypoint(f facility.Facility) Waypoint {
	label := f.Name
	if label == "" {
		label = string(f.Type)
	}
	return Waypoint{
		Location:   f.Location,
		Label:      label,
		FacilityID: f.ID,
		Status:     f.Status,
	}
}

func blockedWarning(blocked []facility.Facility, avoided bool) Warning {
	w := Warning{
		Kind:        WarningBlockedNearby,
		FacilityIDs: make([]string, len(blocked)),
		Locations:   make([]geo.Coordinate, len(blocked)),
	}
	for i, f := range blocked {
		w.FacilityIDs[i] = f.ID
		w.Locations[i] = f.Location
	}

	noun := "facilities"
	if len(blocked) == 1 {
		noun = "facility"
	}
	if avoided {
		w.Message = fmt.Sprintf("%d blocked %s near this route avoided", len(blocked), noun)
	} else {
		w.Message = fmt.Sprintf("%d blocked %s on the way", len(blocked), noun)
	}
	return w
}

// nearestAccessible returns every accessible facility, nearest to origin first.
func nearestAccessible(origin geo.Coordinate, facilities []facility.Facility) []facility.Facility {
	var accessible []facility.Facility
	for _, f := range facilities {
		if f.Status == facility.StatusAccessible {
			accessible = append(accessible, f)
		}
	}
	return sortByDistanceFrom(origin, accessible)
}

// sortByDistanceFrom orders facilities by distance from origin, ties by ID.
func sortByDistanceFrom(origin geo.Coordinate, facilities []facility.Facility) []facility.Facility {
	sorted := append([]facility.Facility(nil), facilities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		di := geo.Distance(origin, sorted[i].Location)
		dj := geo.Distance(origin, sorted[j].Location)
		if di != dj {
			return di < dj
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func pathLength(start, end geo.Coordinate, stops []facility.Facility) float64 {
	path := make([]geo.Coordinate, 0, len(stops)+2)
	path = append(path, start)
	for _, f := range stops {
		path = append(path, f.Location)
	}
	return geo.PathLength(append(path, end))
}

func clampScore(score int) int {
	return max(0, min(100, score))
}
