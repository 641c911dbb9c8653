package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/accessroute/accessroute/internal/api/middleware"
)

func captureRequestID(t *testing.T, header string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var got string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	if header != "" {
		req.Header.Set("X-Request-Id", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return got, rec
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	id, rec := captureRequestID(t, "")

	assert.True(t, strings.HasPrefix(id, "req_"))
	assert.Len(t, id, len("req_")+22)
	assert.Equal(t, id, rec.Header().Get("X-Request-Id"))
}

func TestRequestID_PreservesExistingID(t *testing.T) {
	id, rec := captureRequestID(t, "client-supplied-id")

	assert.Equal(t, "client-supplied-id", id)
	assert.Equal(t, "client-supplied-id", rec.Header().Get("X-Request-Id"))
}

func TestRequestID_ReplacesOversizedID(t *testing.T) {
	id, _ := captureRequestID(t, strings.Repeat("x", 500))
	assert.True(t, strings.HasPrefix(id, "req_"))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _ := captureRequestID(t, "")
		assert.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}

func TestGetRequestID_ReturnsEmptyStringForMissingContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}
