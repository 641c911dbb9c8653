package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned without calling the provider while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig configures a resilient HTTP client.
type ClientConfig struct {
	// Name identifies the provider. Used for the breaker and the registry.
	Name string

	// Timeout bounds each individual attempt. Default: 5s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Default: 2.
	MaxRetries uint64

	// InitialInterval is the first backoff delay. Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay. Default: 2s.
	MaxInterval time.Duration

	// Breaker configures the circuit breaker. Nil uses DefaultBreakerConfig.
	Breaker *BreakerConfig

	// Registry receives success/failure records when set.
	Registry *Registry
}

// DefaultClientConfig returns the defaults used for catalog providers.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client executes HTTP requests through a circuit breaker with retries.
// 5xx responses and transport errors are retried and count as breaker
// failures; 4xx responses are returned to the caller as-is.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	config     ClientConfig
}

// NewClient creates a resilient client and registers it when a registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not response
		registry:   cfg.Registry,
		config:     cfg,
	}

	if c.registry != nil {
		c.registry.Register(c.name, c)
	}

	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req using its context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.do(req.Context(), req)
	if c.registry != nil {
		if err != nil {
			c.registry.RecordFailure(c.name, err)
		} else if resp.StatusCode >= 500 {
			c.registry.RecordFailure(c.name, &ServerError{StatusCode: resp.StatusCode})
		} else {
			c.registry.RecordSuccess(c.name)
		}
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries instead

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var last *http.Response

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed by caller or below
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}

		// Only the final response is handed back; drain earlier 5xx bodies.
		if last != nil && last != resp {
			last.Body.Close()
		}
		last = resp
		return err
	}

	if err := backoff.Retry(attempt, policy); err != nil {
		if last != nil {
			// Retries exhausted on a 5xx: the caller maps the status.
			return last, nil
		}
		return nil, err
	}

	return last, nil
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the current circuit breaker counters.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// ServerError is an HTTP 5xx response treated as a provider failure.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}
