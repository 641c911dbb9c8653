package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessroute/accessroute/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("start.lat must be between -90 and 90").
		WithInstance("/v1/routes:plan").
		WithErrors([]models.FieldError{{Field: "start.lat", Message: "out of range", Code: "OUT_OF_RANGE"}})

	assert.Equal(t, "start.lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/v1/routes:plan", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "OUT_OF_RANGE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "end", Message: "is required"},
	}).WithInstance("/v1/routes:plan")

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/routes:plan", result.Instance)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "end", result.Errors[0].Field)
}

func TestProblem_Constructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		title   string
		status  int
	}{
		{"bad request", models.NewBadRequest("req_1", "d", nil), models.ProblemTypeValidation, "Validation error", http.StatusBadRequest},
		{"invalid route", models.NewInvalidRoute("req_1", "d"), models.ProblemTypeInvalidRoute, "Invalid route", http.StatusBadRequest},
		{"unauthorized", models.NewUnauthorized("req_1", "d"), models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized},
		{"tls required", models.NewTLSRequired("req_1"), models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden},
		{"not found", models.NewNotFound("req_1", "d"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"unsupported media", models.NewUnsupportedMediaType("req_1", "d"), models.ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType},
		{"too many requests", models.NewTooManyRequests("req_1", "d"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req_1", "d"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "d"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "req_1", tt.problem.TraceID)
			assert.NotEmpty(t, tt.problem.Detail)
		})
	}
}

func TestTimestamp_JSON(t *testing.T) {
	var ts models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2026-10-19T09:00:02.5Z"`), &ts))
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 2, 500_000_000, time.UTC), ts.Time())

	assert.Error(t, json.Unmarshal([]byte(`12345`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))

	var ptr *models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ptr))
	assert.Nil(t, ptr)
}
