// Package geo provides the geometric primitives used by route synthesis and
// navigation tracking: great-circle distance, bearing, clamped point-to-segment
// distance and human-readable formatting of distances and durations.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for all distance calculations.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate indicates a coordinate outside the WGS84 degree range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a geographic point in decimal degrees, latitude first.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate is finite and within range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

func (c Coordinate) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lon)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusMeters
}

// PathLength returns the sum of the great-circle lengths of consecutive segments.
func PathLength(points []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// Bearing returns the initial bearing from a to b in degrees [0, 360),
// where 0 is north and 90 is east.
func Bearing(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lonDiff := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(lonDiff) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lonDiff)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Midpoint returns the point halfway along the great circle from a to b.
func Midpoint(a, b Coordinate) Coordinate {
	mid := s2.LatLngFromPoint(s2.Interpolate(0.5, s2.PointFromLatLng(a.latLng()), s2.PointFromLatLng(b.latLng())))
	return Coordinate{Lat: mid.Lat.Degrees(), Lon: mid.Lng.Degrees()}
}

// PointToSegment returns the distance in meters from p to the nearest point on
// segment a→b, and the projection ratio along the segment.
//
// The projection is computed in a local equirectangular plane and the ratio is
// clamped to [0, 1] before measuring, so points beyond either end measure to
// that endpoint rather than to the extended line.
func PointToSegment(p, a, b Coordinate) (dist float64, ratio float64) {
	if a == b {
		return Distance(p, a), 0
	}

	cosLat := math.Cos((a.Lat + b.Lat) / 2 * math.Pi / 180)

	ax, ay := a.Lon*cosLat, a.Lat
	bx, by := b.Lon*cosLat, b.Lat
	px, py := p.Lon*cosLat, p.Lat

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Distance(p, a), 0
	}

	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Coordinate{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
	return Distance(p, closest), t
}

// FormatDistance renders meters for display: "850 m" below one kilometer,
// "1.2 km" above.
func FormatDistance(meters float64) string {
	if meters < 0 {
		meters = 0
	}
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders seconds for display: "45 s", "13 min" or "1 h 5 min".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%d s", seconds)
	}
	minutes := int(math.Ceil(float64(seconds) / 60))
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	minutes %= 60
	if minutes == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, minutes)
}
