package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessroute/accessroute/internal/api"
	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/auth"
	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/geo"
	"github.com/accessroute/accessroute/internal/navigation"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/routing"
)

var (
	tripStart = models.Point{Lat: 30.0, Lon: 120.0}
	tripEnd   = models.Point{Lat: 30.0, Lon: 120.010}
)

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://accounts.accessroute.app",
		Audience:   "accessroute-api",
	})
}

func testFacilities() []facility.Facility {
	updated := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	return []facility.Facility{
		{ID: "ramp-1", Name: "Station ramp", Location: geo.Coordinate{Lat: 30.0, Lon: 120.005}, Type: facility.TypeRamp, Status: facility.StatusAccessible, UpdatedAt: updated},
		{ID: "elev-1", Name: "Bridge elevator", Location: geo.Coordinate{Lat: 30.0002, Lon: 120.003}, Type: facility.TypeElevator, Status: facility.StatusBlocked, UpdatedAt: updated},
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type routerOptions struct {
	catalog  facility.Catalog
	database stubPinger
	registry *resilience.Registry
}

func newTestRouter(t *testing.T, opts routerOptions) http.Handler {
	t.Helper()
	logger := zerolog.New(io.Discard)

	catalog := opts.catalog
	if catalog == nil {
		catalog = facility.NewInMemoryRepository(testFacilities()...)
	}
	synthesis := routing.DefaultConfig()

	return api.NewRouter(api.RouterConfig{
		Version:        "test",
		BuildTime:      "2026-10-19T00:00:00Z",
		Logger:         logger,
		TokenValidator: testJWTService(),
		Planner:        routing.NewPlanner(routing.PlannerConfig{Catalog: catalog, Synthesis: synthesis, Logger: logger}),
		Synthesis:      synthesis,
		Catalog:        catalog,
		Sessions:       navigation.NewStore(navigation.StoreConfig{Logger: logger}),
		Database:       opts.database,
		Registry:       opts.registry,
	})
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken(userID)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func planTrip(t *testing.T, router http.Handler) models.RoutePlanResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/routes:plan", "", models.RoutePlanRequest{
		Start: &tripStart,
		End:   &tripEnd,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.RoutePlanResponse](t, w)
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	w := doJSON(t, router, http.MethodGet, "/v1/ops/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, models.HealthStatusOK, decode[models.Health](t, w).Status)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(t, routerOptions{})
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/v1/ops/ready", "", nil).Code)

	router = newTestRouter(t, routerOptions{database: stubPinger{err: errors.New("connection refused")}})
	w := doJSON(t, router, http.MethodGet, "/v1/ops/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register(facilityProvider, resilience.NewClient(resilience.DefaultClientConfig(facilityProvider)))
	router := newTestRouter(t, routerOptions{registry: registry})

	assert.Equal(t, http.StatusUnauthorized, doJSON(t, router, http.MethodGet, "/v1/ops/status", "", nil).Code)

	w := doJSON(t, router, http.MethodGet, "/v1/ops/status", tokenFor(t, "usr_ops"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, facilityProvider, status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "navigation", status.Subsystems[0].Name)
}

const facilityProvider = "facility-catalog"

func TestRouter_PlanRoutes(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	resp := planTrip(t, router)

	assert.Equal(t, 0, resp.RecommendedIndex)
	assert.Equal(t, 2, resp.FacilitiesConsidered)
	assert.False(t, resp.Degraded)
	assert.InDelta(t, 963, resp.DirectDistanceMeters, 2)
	require.Len(t, resp.Routes, 3)

	recommended := resp.Routes[0]
	assert.Equal(t, models.RouteKindRecommended, recommended.Kind)
	require.Len(t, recommended.Waypoints, 3)
	assert.Equal(t, "Start", recommended.Waypoints[0].Label)
	require.NotNil(t, recommended.Waypoints[1].FacilityID)
	assert.Equal(t, "ramp-1", *recommended.Waypoints[1].FacilityID)
	assert.Equal(t, "accessible", *recommended.Waypoints[1].Status)
	assert.Nil(t, recommended.Waypoints[0].FacilityID)
	require.Len(t, recommended.Warnings, 1)
	assert.Equal(t, []string{"elev-1"}, recommended.Warnings[0].FacilityIDs)
	assert.NotEmpty(t, recommended.Polyline)
	assert.NotEmpty(t, recommended.DistanceText)

	shortest := resp.Routes[1]
	assert.Equal(t, models.RouteKindShortest, shortest.Kind)
	assert.Len(t, shortest.Waypoints, 2)
	assert.Equal(t, 60, shortest.Score)
	assert.Equal(t, models.RouteKindAccessiblePriority, resp.Routes[2].Kind)
}

func TestRouter_PlanRoutes_ValidationError(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	w := doJSON(t, router, http.MethodPost, "/v1/routes:plan", "", models.RoutePlanRequest{
		Start: &models.Point{Lat: 95, Lon: 120},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	problem := decode[models.Problem](t, w)
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.TraceID)

	fields := make([]string, len(problem.Errors))
	for i, fe := range problem.Errors {
		fields[i] = fe.Field
	}
	assert.ElementsMatch(t, []string{"start.lat", "end"}, fields)
}

func TestRouter_PlanRoutes_RejectsNonJSON(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", strings.NewReader("start=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

type failingCatalog struct{}

func (failingCatalog) FindNearby(context.Context, geo.Coordinate, float64) ([]facility.Facility, error) {
	return nil, &facility.Error{Provider: facilityProvider, Code: "SERVER_503", Message: "down", Err: facility.ErrCatalogUnavailable}
}

func TestRouter_PlanRoutes_DegradesWhenCatalogFails(t *testing.T) {
	router := newTestRouter(t, routerOptions{catalog: failingCatalog{}})

	resp := planTrip(t, router)

	assert.True(t, resp.Degraded)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, models.RouteKindShortest, resp.Routes[0].Kind)

	w := doJSON(t, router, http.MethodGet, "/v1/facilities?lat=30&lon=120", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_ExportRoute(t *testing.T) {
	router := newTestRouter(t, routerOptions{})
	plan := planTrip(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/routes:export", "", models.RouteExportRequest{Route: &plan.Routes[0]})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, routing.KMLContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "route.kml")
	body := w.Body.String()
	assert.Contains(t, body, "<kml")
	assert.Contains(t, body, "Station ramp")
	assert.Contains(t, body, "<LineString>")
}

func TestRouter_ExportRoute_InvalidRoute(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	w := doJSON(t, router, http.MethodPost, "/v1/routes:export", "", models.RouteExportRequest{
		Route: &models.Route{Waypoints: []models.Waypoint{{Point: tripStart, Label: "Start"}}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "route.waypoints")
}

func TestRouter_ListFacilities(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	w := doJSON(t, router, http.MethodGet, "/v1/facilities?lat=30&lon=120.005&radius=100", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.FacilityListResponse](t, w)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "ramp-1", resp.Items[0].ID)
	assert.Equal(t, "ramp", resp.Items[0].Type)
	assert.InDelta(t, 0, resp.Items[0].DistanceMeters, 0.5)
	assert.Equal(t, 100.0, resp.Meta.RadiusMeters)
	assert.Equal(t, 1, resp.Meta.Count)

	w = doJSON(t, router, http.MethodGet, "/v1/facilities?lat=30&lon=120.005", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[models.FacilityListResponse](t, w).Meta.Count)
}

func TestRouter_ListFacilities_ValidationError(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	for _, query := range []string{"lon=120", "lat=abc&lon=120", "lat=30&lon=200", "lat=30&lon=120&radius=9000", "lat=30&lon=120&radius=-1"} {
		t.Run(query, func(t *testing.T) {
			w := doJSON(t, router, http.MethodGet, "/v1/facilities?"+query, "", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRouter_NavigationLifecycle(t *testing.T) {
	router := newTestRouter(t, routerOptions{})
	plan := planTrip(t, router)
	token := tokenFor(t, "usr_walker")

	// Create
	w := doJSON(t, router, http.MethodPost, "/v1/navigation/sessions", token, models.NavigationSessionCreateRequest{Route: &plan.Routes[0]})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[models.NavigationSession](t, w)
	assert.Equal(t, "/v1/navigation/sessions/"+session.ID, w.Header().Get("Location"))
	assert.Equal(t, 0, session.CurrentWaypointIndex)
	require.NotNil(t, session.NextWaypoint)
	assert.Equal(t, "Station ramp", session.NextWaypoint.Label)

	fixes := "/v1/navigation/sessions/" + session.ID + "/fixes"

	// Reach the ramp
	w = doJSON(t, router, http.MethodPost, fixes, token, models.PositionFixRequest{Position: &models.Point{Lat: 30.0, Lon: 120.005}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fix := decode[models.PositionFixResponse](t, w)
	require.NotEmpty(t, fix.Events)
	assert.Equal(t, models.EventKindWaypointArrived, fix.Events[0].Kind)
	require.NotNil(t, fix.Events[0].WaypointIndex)
	assert.Equal(t, 1, *fix.Events[0].WaypointIndex)
	assert.Equal(t, 1, fix.Session.CurrentWaypointIndex)

	// Reach the destination
	w = doJSON(t, router, http.MethodPost, fixes, token, models.PositionFixRequest{Position: &tripEnd})
	require.Equal(t, http.StatusOK, w.Code)
	fix = decode[models.PositionFixResponse](t, w)
	require.Len(t, fix.Events, 1)
	assert.Equal(t, models.EventKindDestinationArrived, fix.Events[0].Kind)
	assert.True(t, fix.Session.Arrived)
	assert.Nil(t, fix.Session.NextWaypoint)

	// Fixes after arrival produce no events
	w = doJSON(t, router, http.MethodPost, fixes, token, models.PositionFixRequest{Position: &tripEnd})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.PositionFixResponse](t, w).Events)

	// Another user cannot see the session
	other := tokenFor(t, "usr_other")
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/v1/navigation/sessions/"+session.ID, other, nil).Code)

	// Get, delete, then gone
	w = doJSON(t, router, http.MethodGet, "/v1/navigation/sessions/"+session.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.NavigationSession](t, w).Arrived)

	assert.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodDelete, "/v1/navigation/sessions/"+session.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/v1/navigation/sessions/"+session.ID, token, nil).Code)
}

func TestRouter_NavigationRequiresAuth(t *testing.T) {
	router := newTestRouter(t, routerOptions{})

	w := doJSON(t, router, http.MethodPost, "/v1/navigation/sessions", "", models.NavigationSessionCreateRequest{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_PositionFix_Validation(t *testing.T) {
	router := newTestRouter(t, routerOptions{})
	token := tokenFor(t, "usr_walker")

	w := doJSON(t, router, http.MethodPost, "/v1/navigation/sessions/unknown/fixes", token, models.PositionFixRequest{Position: &tripStart})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/navigation/sessions/unknown/fixes", token, models.PositionFixRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/navigation/sessions", token, models.NavigationSessionCreateRequest{
		Route: &models.Route{Waypoints: []models.Waypoint{{Point: tripStart}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, routerOptions{})
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/v1/nonexistent", "", nil).Code)
}
