package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/geo"
)

// DefaultFacilityRadiusMeters is used when the radius query parameter is absent.
const DefaultFacilityRadiusMeters = 500.0

// FacilityHandler handles facility lookup endpoints.
type FacilityHandler struct {
	catalog facility.Catalog
	logger  zerolog.Logger
}

// NewFacilityHandler creates a new FacilityHandler.
func NewFacilityHandler(catalog facility.Catalog, logger zerolog.Logger) *FacilityHandler {
	return &FacilityHandler{catalog: catalog, logger: logger}
}

// ListNearby handles GET /v1/facilities?lat=&lon=&radius=.
func (h *FacilityHandler) ListNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fieldErrs []models.FieldError

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lat", Message: "must be a number", Code: "INVALID"})
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lon", Message: "must be a number", Code: "INVALID"})
	}

	radius := DefaultFacilityRadiusMeters
	if raw := q.Get("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 || radius > facility.MaxRadiusMeters {
			fieldErrs = append(fieldErrs, models.FieldError{Field: "radius", Message: "must be a number in (0, 5000]", Code: "OUT_OF_RANGE"})
		}
	}

	if len(fieldErrs) == 0 {
		fieldErrs = validatePoint("center", &models.Point{Lat: lat, Lon: lon})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid facility query", fieldErrs)
		return
	}

	center := geo.Coordinate{Lat: lat, Lon: lon}
	facilities, err := h.catalog.FindNearby(r.Context(), center, radius)
	if err != nil {
		switch {
		case errors.Is(err, facility.ErrInvalidQuery):
			response.BadRequest(w, r, err.Error(), nil)
		case errors.Is(err, facility.ErrCatalogUnavailable):
			h.logger.Warn().Err(err).Msg("facility catalog unavailable")
			response.ServiceUnavailable(w, r, "facility catalog unavailable")
		default:
			h.logger.Error().Err(err).Msg("facility lookup failed")
			response.InternalError(w, r, "failed to look up facilities")
		}
		return
	}

	items := make([]models.Facility, len(facilities))
	for i, f := range facilities {
		items[i] = toFacilityModel(f, center)
	}

	response.JSON(w, r, http.StatusOK, models.FacilityListResponse{
		Items: items,
		Meta: models.FacilitySearchMeta{
			Center:       models.Point{Lat: lat, Lon: lon},
			RadiusMeters: radius,
			Count:        len(items),
		},
	})
}
