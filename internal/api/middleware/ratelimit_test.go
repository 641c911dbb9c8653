package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/accessroute/accessroute/internal/api/middleware"
)

func serveFrom(handler http.Handler, remoteAddr string, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test/path", http.NoBody)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute}
	handler := middleware.RateLimitByIP(cfg)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serveFrom(handler, "192.0.2.1:1234", "").Code, "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(handler, "192.0.2.1:1234", "").Code)
	assert.Equal(t, http.StatusOK, serveFrom(handler, "192.0.2.2:1234", "").Code)
}

func TestRateLimitByUser_KeysByUserAcrossIPs(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}
	handler := middleware.RateLimitByUser(cfg)(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, serveFrom(handler, "198.51.100.1:1", "usr_a").Code)
	assert.Equal(t, http.StatusOK, serveFrom(handler, "198.51.100.2:1", "usr_a").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(handler, "198.51.100.3:1", "usr_a").Code)

	// Another user on the same IP has its own budget.
	assert.Equal(t, http.StatusOK, serveFrom(handler, "198.51.100.1:1", "usr_b").Code)
}

func TestRateLimitByUser_FallsBackToIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	handler := middleware.RateLimitByUser(cfg)(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, serveFrom(handler, "203.0.113.9:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(handler, "203.0.113.9:1", "").Code)
	assert.Equal(t, http.StatusOK, serveFrom(handler, "203.0.113.10:1", "").Code)
}

func TestRateLimitExceededResponse_Format(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 30 * time.Second}
	handler := middleware.RequestID(middleware.RateLimitByIP(cfg)(http.HandlerFunc(okHandler)))

	assert.Equal(t, http.StatusOK, serveFrom(handler, "203.0.113.1:1", "").Code)
	rec := serveFrom(handler, "203.0.113.1:1", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "/test/path")
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 30, middleware.ExpensiveRateLimit.RequestLimit)
	assert.Equal(t, 120, middleware.PositionFixRateLimit.RequestLimit)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.StandardRateLimit.WindowLength)
}
