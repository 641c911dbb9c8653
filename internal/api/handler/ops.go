// Package handler provides HTTP handlers for the AccessRoute API.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/provider/resilience"
)

// readinessTimeout bounds dependency checks on the readiness probe.
const readinessTimeout = 2 * time.Second

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds dependencies for the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Database is pinged by readiness and status checks (optional).
	Database Pinger

	// Registry reports external provider health (optional).
	Registry *resilience.Registry

	// SessionCount reports active navigation sessions (optional).
	SessionCount func() int

	Logger zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.cfg.Database.Ping(ctx); err != nil {
			h.cfg.Logger.Warn().Err(err).Msg("readiness check failed: database unreachable")
			response.ServiceUnavailable(w, r, "database unreachable")
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.cfg.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := h.cfg.Database.Ping(ctx)
		cancel()

		sub := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status.Status = models.HealthStatusFail
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.cfg.SessionCount != nil {
		detail := fmt.Sprintf("%d active sessions", h.cfg.SessionCount())
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "navigation",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.AllHealth() {
			ps := toProviderStatus(ph)
			if ps.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: int(ph.Counts.ConsecutiveFailures),
		LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
		LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
	}
	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
