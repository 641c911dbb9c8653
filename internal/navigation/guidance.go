package navigation

import (
	"fmt"
	"time"
)

// guidanceBands are the announced distances in meters, nearest first.
var guidanceBands = []int{50, 100, 200}

// GuidanceThrottle picks distance-banded guidance messages and enforces a
// minimum interval between them.
type GuidanceThrottle struct {
	interval time.Duration
	last     *time.Time
}

// NewGuidanceThrottle creates a throttle with the given minimum interval.
func NewGuidanceThrottle(interval time.Duration) *GuidanceThrottle {
	return &GuidanceThrottle{interval: interval}
}

// Last returns when a message was last emitted, or nil.
func (g *GuidanceThrottle) Last() *time.Time {
	if g.last == nil {
		return nil
	}
	t := *g.last
	return &t
}

// Next returns the message for the given distance to label, if the interval
// has passed and the distance falls in a band. The timestamp advances only
// when a message is returned.
func (g *GuidanceThrottle) Next(distanceMeters float64, label string, now time.Time) (string, bool) {
	if g.last != nil && now.Sub(*g.last) < g.interval {
		return "", false
	}

	msg, ok := bandMessage(distanceMeters, label)
	if !ok {
		return "", false
	}
	g.last = &now
	return msg, true
}

func bandMessage(distanceMeters float64, label string) (string, bool) {
	for _, band := range guidanceBands {
		if distanceMeters < float64(band) {
			return fmt.Sprintf("%dm to %s", band, label), true
		}
	}
	return "", false
}
