package handler

import (
	"fmt"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/geo"
	"github.com/accessroute/accessroute/internal/navigation"
	"github.com/accessroute/accessroute/internal/routing"
)

func toPoint(c geo.Coordinate) models.Point {
	return models.Point{Lat: c.Lat, Lon: c.Lon}
}

func fromPoint(p models.Point) geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// validatePoint checks a required point field.
func validatePoint(field string, p *models.Point) []models.FieldError {
	if p == nil {
		return []models.FieldError{{Field: field, Message: "is required", Code: "REQUIRED"}}
	}
	var errs []models.FieldError
	if p.Lat < -90 || p.Lat > 90 {
		errs = append(errs, models.FieldError{Field: field + ".lat", Message: "must be between -90 and 90", Code: "OUT_OF_RANGE"})
	}
	if p.Lon < -180 || p.Lon > 180 {
		errs = append(errs, models.FieldError{Field: field + ".lon", Message: "must be between -180 and 180", Code: "OUT_OF_RANGE"})
	}
	return errs
}

func toWaypointModel(w routing.Waypoint) models.Waypoint {
	out := models.Waypoint{
		Point: toPoint(w.Location),
		Label: w.Label,
	}
	if w.IsFacility() {
		id := w.FacilityID
		status := string(w.Status)
		out.FacilityID = &id
		out.Status = &status
	}
	return out
}

func toRouteModel(r routing.Route) models.Route {
	waypoints := make([]models.Waypoint, len(r.Waypoints))
	for i, w := range r.Waypoints {
		waypoints[i] = toWaypointModel(w)
	}

	warnings := make([]models.Warning, len(r.Warnings))
	for i, w := range r.Warnings {
		locations := make([]models.Point, len(w.Locations))
		for j, loc := range w.Locations {
			locations[j] = toPoint(loc)
		}
		ids := w.FacilityIDs
		if ids == nil {
			ids = []string{}
		}
		warnings[i] = models.Warning{
			Kind:        string(w.Kind),
			Message:     w.Message,
			FacilityIDs: ids,
			Locations:   locations,
		}
	}

	return models.Route{
		Name:            r.Name,
		Kind:            string(r.Kind),
		Score:           r.Score,
		DistanceMeters:  r.TotalDistanceMeters,
		DurationSeconds: r.EstimatedDurationSeconds,
		DistanceText:    geo.FormatDistance(r.TotalDistanceMeters),
		DurationText:    geo.FormatDuration(r.EstimatedDurationSeconds),
		Polyline:        routing.EncodePolyline(r),
		Waypoints:       waypoints,
		Warnings:        warnings,
	}
}

// fromRouteModel converts a client-supplied route. Distance and duration are
// recomputed from the waypoints rather than trusted.
func fromRouteModel(m *models.Route, cfg routing.Config) (routing.Route, []models.FieldError) {
	if m == nil {
		return routing.Route{}, []models.FieldError{{Field: "route", Message: "is required", Code: "REQUIRED"}}
	}
	if len(m.Waypoints) < 2 {
		return routing.Route{}, []models.FieldError{{Field: "route.waypoints", Message: "must contain at least 2 waypoints", Code: "TOO_FEW"}}
	}

	var errs []models.FieldError
	waypoints := make([]routing.Waypoint, len(m.Waypoints))
	for i, w := range m.Waypoints {
		field := fmt.Sprintf("route.waypoints[%d]", i)
		point := w.Point
		errs = append(errs, validatePoint(field+".point", &point)...)

		wp := routing.Waypoint{Location: fromPoint(point), Label: w.Label}
		if w.FacilityID != nil {
			wp.FacilityID = *w.FacilityID
		}
		if w.Status != nil {
			status := facility.Status(*w.Status)
			if !status.Valid() {
				errs = append(errs, models.FieldError{Field: field + ".status", Message: "unknown facility status", Code: "INVALID_ENUM"})
			}
			wp.Status = status
		}
		waypoints[i] = wp
	}
	if len(errs) > 0 {
		return routing.Route{}, errs
	}

	warnings := make([]routing.Warning, len(m.Warnings))
	for i, w := range m.Warnings {
		locations := make([]geo.Coordinate, len(w.Locations))
		for j, loc := range w.Locations {
			locations[j] = fromPoint(loc)
		}
		warnings[i] = routing.Warning{
			Kind:        routing.WarningKind(w.Kind),
			Message:     w.Message,
			FacilityIDs: w.FacilityIDs,
			Locations:   locations,
		}
	}

	route := routing.Route{
		Name:      m.Name,
		Kind:      routing.Kind(m.Kind),
		Waypoints: waypoints,
		Warnings:  warnings,
		Score:     m.Score,
	}
	route.TotalDistanceMeters = geo.PathLength(route.Path())
	route.EstimatedDurationSeconds = routing.EstimateDuration(route.TotalDistanceMeters, cfg.WalkingSpeedMPS)
	return route, nil
}

func toFacilityModel(f facility.Facility, center geo.Coordinate) models.Facility {
	out := models.Facility{
		ID:             f.ID,
		Name:           f.Name,
		Location:       toPoint(f.Location),
		Type:           string(f.Type),
		Status:         string(f.Status),
		DistanceMeters: geo.Distance(center, f.Location),
	}
	if !f.UpdatedAt.IsZero() {
		out.UpdatedAt = models.TimestampPtr(&f.UpdatedAt)
	}
	return out
}

func toSessionModel(s navigation.Snapshot) models.NavigationSession {
	out := models.NavigationSession{
		ID:                   s.ID,
		Route:                toRouteModel(s.Route),
		CurrentWaypointIndex: s.CurrentWaypointIndex,
		Arrived:              s.Arrived,
		OffRoute:             s.OffRoute,
		LastGuidanceAt:       models.TimestampPtr(s.LastGuidanceAt),
		CreatedAt:            models.Timestamp(s.CreatedAt),
		UpdatedAt:            models.Timestamp(s.UpdatedAt),
	}
	if next := s.CurrentWaypointIndex + 1; !s.Arrived && next < len(s.Route.Waypoints) {
		next := toWaypointModel(s.Route.Waypoints[next])
		out.NextWaypoint = &next
	}
	return out
}

func toEventModels(events []navigation.Event) []models.NavigationEvent {
	out := make([]models.NavigationEvent, len(events))
	for i, e := range events {
		ev := models.NavigationEvent{
			Kind:    string(e.Kind),
			Message: e.Message,
			At:      models.Timestamp(e.At),
		}
		if e.Waypoint != nil {
			idx := e.WaypointIndex
			wp := toWaypointModel(*e.Waypoint)
			ev.WaypointIndex = &idx
			ev.Waypoint = &wp
		}
		out[i] = ev
	}
	return out
}
