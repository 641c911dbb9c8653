package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/geo"
)

// Fix is one position report.
type Fix struct {
	Position geo.Coordinate
	At       time.Time
}

// EventHandler receives the events produced by one fix.
type EventHandler func(fix Fix, events []Event)

// Tracker drives a session from a stream of fixes on a single goroutine.
type Tracker struct {
	session *Session
	logger  zerolog.Logger
}

// NewTracker creates a tracker that owns session.
func NewTracker(session *Session, logger zerolog.Logger) *Tracker {
	return &Tracker{session: session, logger: logger}
}

// Run consumes fixes until the destination is reached, the channel is
// closed or ctx is cancelled. Invalid fixes are logged and skipped. handle
// is called only for fixes that produced events.
func (t *Tracker) Run(ctx context.Context, fixes <-chan Fix, handle EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fix, ok := <-fixes:
			if !ok {
				return nil
			}

			events, err := t.session.OnPositionFix(fix.Position, fix.At)
			if err != nil {
				if errors.Is(err, ErrInvalidRoute) {
					return err
				}
				t.logger.Warn().
					Err(err).
					Float64("lat", fix.Position.Lat).
					Float64("lon", fix.Position.Lon).
					Msg("skipping position fix")
				continue
			}

			if len(events) > 0 && handle != nil {
				handle(fix, events)
			}

			if t.session.Arrived() {
				t.logger.Debug().Msg("tracker stopped at destination")
				return nil
			}
		}
	}
}
