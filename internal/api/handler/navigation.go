package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/navigation"
	"github.com/accessroute/accessroute/internal/routing"
)

// NavigationHandler handles navigation session endpoints.
type NavigationHandler struct {
	store     *navigation.Store
	synthesis routing.Config
	logger    zerolog.Logger
}

// NewNavigationHandler creates a new NavigationHandler.
func NewNavigationHandler(store *navigation.Store, synthesis routing.Config, logger zerolog.Logger) *NavigationHandler {
	if synthesis.WalkingSpeedMPS <= 0 {
		synthesis.WalkingSpeedMPS = routing.DefaultConfig().WalkingSpeedMPS
	}
	return &NavigationHandler{
		store:     store,
		synthesis: synthesis,
		logger:    logger,
	}
}

// CreateSession handles POST /v1/navigation/sessions.
func (h *NavigationHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req models.NavigationSessionCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	route, fieldErrs := fromRouteModel(req.Route, h.synthesis)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid route", fieldErrs)
		return
	}

	snap, err := h.store.Create(r.Context(), userID, route)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/navigation/sessions/"+snap.ID, toSessionModel(snap))
}

// GetSession handles GET /v1/navigation/sessions/{sessionId}.
func (h *NavigationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	snap, err := h.store.Get(r.Context(), chi.URLParam(r, "sessionId"), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toSessionModel(snap))
}

// PostFix handles POST /v1/navigation/sessions/{sessionId}/fixes.
func (h *NavigationHandler) PostFix(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req models.PositionFixRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if fieldErrs := validatePoint("position", req.Position); len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid position fix", fieldErrs)
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = req.Timestamp.Time()
	}

	events, snap, err := h.store.Feed(r.Context(), chi.URLParam(r, "sessionId"), userID, fromPoint(*req.Position), at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.PositionFixResponse{
		Events:  toEventModels(events),
		Session: toSessionModel(snap),
	})
}

// DeleteSession handles DELETE /v1/navigation/sessions/{sessionId}.
func (h *NavigationHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	if err := h.store.Delete(r.Context(), chi.URLParam(r, "sessionId"), userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

func (h *NavigationHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, navigation.ErrSessionNotFound):
		response.NotFound(w, r, "navigation session not found")
	case errors.Is(err, navigation.ErrInvalidRoute):
		response.InvalidRoute(w, r, err.Error())
	case errors.Is(err, navigation.ErrInvalidPosition):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		h.logger.Error().Err(err).Msg("navigation request failed")
		response.InternalError(w, r, "navigation request failed")
	}
}
