package models

// RoutePlanRequest is the body of POST /v1/routes:plan.
type RoutePlanRequest struct {
	Start            *Point  `json:"start"`
	End              *Point  `json:"end"`
	AvoidBlocked     bool    `json:"avoidBlocked"`
	PreferAccessible *bool   `json:"preferAccessible,omitempty"` // default true
	MaxDetourMeters  float64 `json:"maxDetourMeters,omitempty"`
}

// RoutePlanResponse is the result of planning a trip.
type RoutePlanResponse struct {
	GeneratedAt          Timestamp `json:"generatedAt"`
	DirectDistanceMeters float64   `json:"directDistanceMeters"`
	RecommendedIndex     int       `json:"recommendedIndex"`
	FacilitiesConsidered int       `json:"facilitiesConsidered"`
	Degraded             bool      `json:"degraded"`
	Routes               []Route   `json:"routes"`
}

// RouteKind values.
const (
	RouteKindRecommended        = "recommended"
	RouteKindShortest           = "shortest"
	RouteKindAccessiblePriority = "accessible_priority"
)

// Route is a candidate route.
type Route struct {
	Name            string     `json:"name"`
	Kind            string     `json:"kind"`
	Score           int        `json:"score"`
	DistanceMeters  float64    `json:"distanceMeters"`
	DurationSeconds int        `json:"durationSeconds"`
	DistanceText    string     `json:"distanceText,omitempty"`
	DurationText    string     `json:"durationText,omitempty"`
	Polyline        string     `json:"polyline,omitempty"`
	Waypoints       []Waypoint `json:"waypoints"`
	Warnings        []Warning  `json:"warnings"`
}

// Waypoint is one stop along a route.
type Waypoint struct {
	Point      Point   `json:"point"`
	Label      string  `json:"label"`
	FacilityID *string `json:"facilityId,omitempty"`
	Status     *string `json:"status,omitempty"`
}

// Warning describes a condition on a route.
type Warning struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	FacilityIDs []string `json:"facilityIds"`
	Locations   []Point  `json:"locations,omitempty"`
}

// RouteExportRequest is the body of POST /v1/routes:export.
type RouteExportRequest struct {
	Route *Route `json:"route"`
}
