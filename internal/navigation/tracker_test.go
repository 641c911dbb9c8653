package navigation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessroute/accessroute/internal/geo"
)

func TestTracker_RunUntilArrival(t *testing.T) {
	s, err := NewSession(threeStopRoute())
	require.NoError(t, err)

	fixes := make(chan Fix, 4)
	fixes <- Fix{Position: geo.Coordinate{Lat: 30.0001, Lon: 120.005}, At: t0}
	fixes <- Fix{Position: geo.Coordinate{Lat: 200, Lon: 0}, At: t0.Add(time.Second)}
	fixes <- Fix{Position: geo.Coordinate{Lat: 30.0001, Lon: 120.010}, At: t0.Add(2 * time.Second)}
	fixes <- Fix{Position: geo.Coordinate{Lat: 30.0001, Lon: 120.010}, At: t0.Add(3 * time.Second)}

	var got []EventKind
	err = NewTracker(s, zerolog.Nop()).Run(context.Background(), fixes, func(_ Fix, events []Event) {
		got = append(got, eventKinds(events)...)
	})
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventWaypointArrived, EventDestinationArrived}, got)
	assert.True(t, s.Arrived())
	assert.Len(t, fixes, 1, "tracker stops at the destination")
}

func TestTracker_ClosedChannel(t *testing.T) {
	s, err := NewSession(threeStopRoute())
	require.NoError(t, err)

	fixes := make(chan Fix)
	close(fixes)

	err = NewTracker(s, zerolog.Nop()).Run(context.Background(), fixes, nil)
	assert.NoError(t, err)
	assert.False(t, s.Arrived())
}

func TestTracker_Cancel(t *testing.T) {
	s, err := NewSession(threeStopRoute())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewTracker(s, zerolog.Nop()).Run(ctx, make(chan Fix), nil)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop on cancel")
	}
}
