// Package remote provides a facility Catalog backed by an external facility
// catalog HTTP API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/geo"
	"github.com/accessroute/accessroute/internal/provider/resilience"
)

const (
	// ProviderName identifies this catalog provider.
	ProviderName = "facility-catalog"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second

	nearbyPath = "/v1/facilities/nearby"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the remote catalog client.
type ClientConfig struct {
	// BaseURL is the catalog API base URL (required).
	BaseURL string

	// APIKey is sent as X-Api-Key when set.
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 5s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a remote facility catalog client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new remote catalog client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// nearbyResponse is the catalog's nearby search payload.
type nearbyResponse struct {
	Facilities []facilityDTO `json:"facilities"`
}

type facilityDTO struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	FacilityType string     `json:"facilityType"`
	Status       string     `json:"status"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FindNearby retrieves facilities within radiusMeters of center.
func (c *Client) FindNearby(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]facility.Facility, error) {
	if err := center.Validate(); err != nil {
		return nil, &facility.Error{
			Provider: ProviderName,
			Code:     "INVALID_CENTER",
			Message:  "invalid search center",
			Err:      facility.ErrInvalidQuery,
		}
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(center.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(center.Lon, 'f', 6, 64))
	q.Set("radius", strconv.FormatFloat(radiusMeters, 'f', 0, 64))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+nearbyPath+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	c.logger.Debug().
		Float64("lat", center.Lat).
		Float64("lon", center.Lon).
		Float64("radius_m", radiusMeters).
		Msg("requesting nearby facilities from catalog")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &facility.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach facility catalog",
			Err:      facility.ErrCatalogUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}

	var payload nearbyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	facilities := c.toFacilities(payload.Facilities)

	c.logger.Debug().
		Int("facility_count", len(facilities)).
		Int("skipped", len(payload.Facilities)-len(facilities)).
		Msg("received nearby facilities from catalog")

	return facilities, nil
}

// handleErrorResponse maps catalog error responses to facility errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	message := apiErr.Message
	if message == "" {
		message = fmt.Sprintf("facility catalog returned status %d", statusCode)
	}

	switch {
	case statusCode == http.StatusBadRequest:
		return &facility.Error{Provider: ProviderName, Code: "BAD_REQUEST", Message: message, Err: facility.ErrInvalidQuery}
	case statusCode == http.StatusTooManyRequests:
		return &facility.Error{Provider: ProviderName, Code: "RATE_LIMIT", Message: message, Err: facility.ErrCatalogUnavailable}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &facility.Error{Provider: ProviderName, Code: "FORBIDDEN", Message: "catalog access denied - check API key configuration", Err: facility.ErrCatalogUnavailable}
	case statusCode >= 500:
		return &facility.Error{Provider: ProviderName, Code: fmt.Sprintf("SERVER_%d", statusCode), Message: "facility catalog is temporarily unavailable", Err: facility.ErrCatalogUnavailable}
	default:
		return &facility.Error{Provider: ProviderName, Code: fmt.Sprintf("HTTP_%d", statusCode), Message: message, Err: facility.ErrCatalogUnavailable}
	}
}

// toFacilities converts catalog records, dropping records with unknown
// type, unknown status or invalid coordinates.
func (c *Client) toFacilities(records []facilityDTO) []facility.Facility {
	out := make([]facility.Facility, 0, len(records))
	for _, r := range records {
		f := facility.Facility{
			ID:       r.ID,
			Name:     r.Name,
			Location: geo.Coordinate{Lat: r.Latitude, Lon: r.Longitude},
			Type:     normalizeType(r.FacilityType),
			Status:   facility.Status(r.Status),
		}
		if r.UpdatedAt != nil {
			f.UpdatedAt = *r.UpdatedAt
		}

		if r.ID == "" || !f.Type.Valid() || !f.Status.Valid() || f.Location.Validate() != nil {
			c.logger.Warn().
				Str("facility_id", r.ID).
				Str("facility_type", r.FacilityType).
				Str("status", r.Status).
				Msg("skipping malformed catalog record")
			continue
		}
		out = append(out, f)
	}
	return out
}

// normalizeType accepts both snake_case and camelCase type names.
func normalizeType(s string) facility.Type {
	if s == "liftPlatform" {
		return facility.TypeLiftPlatform
	}
	return facility.Type(s)
}

// Ensure Client implements facility.Catalog interface.
var _ facility.Catalog = (*Client)(nil)
