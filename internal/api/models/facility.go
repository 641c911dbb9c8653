package models

// Facility is an accessibility facility near a point.
type Facility struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Location       Point      `json:"location"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	DistanceMeters float64    `json:"distanceMeters"`
	UpdatedAt      *Timestamp `json:"updatedAt,omitempty"`
}

// FacilityListResponse is the result of a nearby facility search.
type FacilityListResponse struct {
	Items []Facility         `json:"items"`
	Meta  FacilitySearchMeta `json:"meta"`
}

// FacilitySearchMeta describes the search that produced a facility list.
type FacilitySearchMeta struct {
	Center       Point   `json:"center"`
	RadiusMeters float64 `json:"radiusMeters"`
	Count        int     `json:"count"`
}
