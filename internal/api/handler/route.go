package handler

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/routing"
)

// RouteHandler handles route planning and export endpoints.
type RouteHandler struct {
	planner   *routing.Planner
	synthesis routing.Config
	logger    zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(planner *routing.Planner, synthesis routing.Config, logger zerolog.Logger) *RouteHandler {
	if synthesis.WalkingSpeedMPS <= 0 {
		synthesis.WalkingSpeedMPS = routing.DefaultConfig().WalkingSpeedMPS
	}
	return &RouteHandler{
		planner:   planner,
		synthesis: synthesis,
		logger:    logger,
	}
}

// PlanRoutes handles POST /v1/routes:plan.
func (h *RouteHandler) PlanRoutes(w http.ResponseWriter, r *http.Request) {
	var req models.RoutePlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	var fieldErrs []models.FieldError
	fieldErrs = append(fieldErrs, validatePoint("start", req.Start)...)
	fieldErrs = append(fieldErrs, validatePoint("end", req.End)...)
	if req.MaxDetourMeters < 0 {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "maxDetourMeters", Message: "must not be negative", Code: "OUT_OF_RANGE"})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid route plan request", fieldErrs)
		return
	}

	opts := routing.Options{
		AvoidBlocked:     req.AvoidBlocked,
		PreferAccessible: true,
		MaxDetourMeters:  req.MaxDetourMeters,
	}
	if req.PreferAccessible != nil {
		opts.PreferAccessible = *req.PreferAccessible
	}

	result, err := h.planner.Plan(r.Context(), fromPoint(*req.Start), fromPoint(*req.End), opts)
	if err != nil {
		if errors.Is(err, routing.ErrInvalidInput) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		h.logger.Error().Err(err).Msg("route planning failed")
		response.InternalError(w, r, "failed to plan routes")
		return
	}

	routes := make([]models.Route, len(result.Routes))
	for i, route := range result.Routes {
		routes[i] = toRouteModel(route)
	}

	response.JSON(w, r, http.StatusOK, models.RoutePlanResponse{
		GeneratedAt:          models.Timestamp(time.Now()),
		DirectDistanceMeters: result.DirectDistanceMeters,
		RecommendedIndex:     result.RecommendedIndex,
		FacilitiesConsidered: result.FacilitiesConsidered,
		Degraded:             result.Degraded,
		Routes:               routes,
	})
}

// ExportRoute handles POST /v1/routes:export and returns a KML document.
func (h *RouteHandler) ExportRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteExportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	route, fieldErrs := fromRouteModel(req.Route, h.synthesis)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid route", fieldErrs)
		return
	}

	var buf bytes.Buffer
	if err := routing.ExportKML(&buf, route); err != nil {
		if errors.Is(err, routing.ErrInvalidInput) {
			response.InvalidRoute(w, r, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("route export failed")
		response.InternalError(w, r, "failed to export route")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="route.kml"`)
	response.Bytes(w, r, http.StatusOK, routing.KMLContentType, buf.Bytes())
}
