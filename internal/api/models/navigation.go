package models

// NavigationSessionCreateRequest is the body of POST /v1/navigation/sessions.
type NavigationSessionCreateRequest struct {
	Route *Route `json:"route"`
}

// NavigationSession is the state of a navigation session.
type NavigationSession struct {
	ID                   string     `json:"id"`
	Route                Route      `json:"route"`
	CurrentWaypointIndex int        `json:"currentWaypointIndex"`
	NextWaypoint         *Waypoint  `json:"nextWaypoint,omitempty"`
	Arrived              bool       `json:"arrived"`
	OffRoute             bool       `json:"offRoute"`
	LastGuidanceAt       *Timestamp `json:"lastGuidanceAt,omitempty"`
	CreatedAt            Timestamp  `json:"createdAt"`
	UpdatedAt            Timestamp  `json:"updatedAt"`
}

// PositionFixRequest is the body of POST /v1/navigation/sessions/{id}/fixes.
type PositionFixRequest struct {
	Position  *Point     `json:"position"`
	Timestamp *Timestamp `json:"timestamp,omitempty"` // server time when omitted
}

// PositionFixResponse carries the events produced by a fix.
type PositionFixResponse struct {
	Events  []NavigationEvent `json:"events"`
	Session NavigationSession `json:"session"`
}

// NavigationEvent kinds.
const (
	EventKindWaypointArrived    = "waypoint_arrived"
	EventKindDestinationArrived = "destination_arrived"
	EventKindOffRoute           = "off_route"
	EventKindBackOnRoute        = "back_on_route"
	EventKindGuidance           = "guidance"
)

// NavigationEvent is one event emitted by a position fix.
type NavigationEvent struct {
	Kind          string    `json:"kind"`
	WaypointIndex *int      `json:"waypointIndex,omitempty"`
	Waypoint      *Waypoint `json:"waypoint,omitempty"`
	Message       string    `json:"message,omitempty"`
	At            Timestamp `json:"at"`
}
