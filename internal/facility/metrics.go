package facility

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/accessroute/accessroute/internal/facility"

// Metrics holds instruments for catalog lookups and the nearby cache.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewMetrics creates the facility lookup instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"facility.catalog.request.duration",
		metric.WithDescription("Duration of facility catalog requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"facility.catalog.request.total",
		metric.WithDescription("Total number of facility catalog requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"facility.cache.hit",
		metric.WithDescription("Number of nearby lookups served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"facility.cache.miss",
		metric.WithDescription("Number of nearby lookups that went to the catalog"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordRequest records a catalog request.
func (m *Metrics) RecordRequest(catalog string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("facility.catalog", catalog)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Background context so cancelled requests are still counted.
	ctx := context.TODO()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(catalog string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("facility.catalog", catalog)))
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(catalog string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("facility.catalog", catalog)))
}
