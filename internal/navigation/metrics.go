package navigation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/accessroute/accessroute/internal/navigation"

// Metrics holds the navigation metrics instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	events         metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
}

// NewMetrics creates a new Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	events, err := meter.Int64Counter(
		"navigation.events.total",
		metric.WithDescription("Total number of navigation events emitted"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"navigation.sessions.active",
		metric.WithDescription("Number of active navigation sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		events:         events,
		activeSessions: activeSessions,
	}, nil
}

func (m *Metrics) recordEvents(ctx context.Context, events []Event) {
	if m == nil {
		return
	}
	for _, e := range events {
		m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event.kind", string(e.Kind))))
	}
}

func (m *Metrics) sessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

func (m *Metrics) sessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
