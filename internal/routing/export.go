package routing

import (
	"fmt"
	"io"

	kml "github.com/twpayne/go-kml"
	"github.com/twpayne/go-polyline"

	"github.com/accessroute/accessroute/internal/geo"
)

// KMLContentType is the media type written by ExportKML.
const KMLContentType = "application/vnd.google-earth.kml+xml"

// EncodePolyline encodes the route waypoints as a precision 5 polyline.
func EncodePolyline(r Route) string {
	coords := make([][]float64, len(r.Waypoints))
	for i, w := range r.Waypoints {
		coords[i] = []float64{w.Location.Lat, w.Location.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes a precision 5 polyline into coordinates.
func DecodePolyline(encoded string) ([]geo.Coordinate, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding polyline: %w", err)
	}
	out := make([]geo.Coordinate, len(coords))
	for i, c := range coords {
		out[i] = geo.Coordinate{Lat: c[0], Lon: c[1]}
	}
	return out, nil
}

// ExportKML writes the route as a KML document: one line for the path and
// one point per waypoint.
func ExportKML(w io.Writer, r Route) error {
	if len(r.Waypoints) < 2 {
		return fmt.Errorf("%w: route has %d waypoints", ErrInvalidInput, len(r.Waypoints))
	}

	line := make([]kml.Coordinate, len(r.Waypoints))
	for i, wp := range r.Waypoints {
		line[i] = kml.Coordinate{Lon: wp.Location.Lon, Lat: wp.Location.Lat}
	}

	summary := fmt.Sprintf("%s, about %s on foot",
		geo.FormatDistance(r.TotalDistanceMeters),
		geo.FormatDuration(r.EstimatedDurationSeconds))
	for _, warn := range r.Warnings {
		summary += ". " + warn.Message
	}

	children := []kml.Element{
		kml.Name(r.Name),
		kml.Description(summary),
		kml.Placemark(
			kml.Name(r.Name),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(line...),
			),
		),
	}

	for _, wp := range r.Waypoints {
		desc := wp.Label
		if wp.IsFacility() {
			desc = fmt.Sprintf("facility %s (%s)", wp.FacilityID, wp.Status)
		}
		children = append(children, kml.Placemark(
			kml.Name(wp.Label),
			kml.Description(desc),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: wp.Location.Lon, Lat: wp.Location.Lat})),
		))
	}

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("writing kml: %w", err)
	}
	return nil
}
