// Package resilience wraps outbound calls to external catalogs with a circuit
// breaker, per-request timeouts and exponential-backoff retries, and tracks
// provider health for the ops status endpoint.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs and health reports.
	Name string

	// MaxRequests is the number of trial requests allowed while half-open. Default: 1.
	MaxRequests uint32

	// Interval clears counts periodically while closed. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing. Default: 30s.
	Timeout time.Duration

	// ReadyToTrip decides when to open. Default: TripOnFailureRatio.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange observes state transitions.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultBreakerConfig returns the breaker settings used for catalog providers.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: TripOnFailureRatio,
	}
}

// TripOnFailureRatio opens the breaker once at least 5 requests were seen and
// half or more of them failed.
func TripOnFailureRatio(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// NewBreaker builds a typed circuit breaker from cfg.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = TripOnFailureRatio
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
