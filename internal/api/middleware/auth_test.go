package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessroute/accessroute/internal/api/middleware"
	"github.com/accessroute/accessroute/internal/auth"
)

type stubValidator struct {
	userID string
	err    error
	token  string
}

func (s *stubValidator) UserIDFromToken(token string) (string, error) {
	s.token = token
	return s.userID, s.err
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler := middleware.Auth(&stubValidator{userID: "usr_1"})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	handler := middleware.Auth(&stubValidator{userID: "usr_1"})(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_ValidatorErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		detail string
	}{
		{"expired", auth.ErrAccessTokenExpired, "access token has expired"},
		{"invalid", auth.ErrInvalidAccessToken, "invalid access token"},
		{"no subject", auth.ErrMissingSubject, "invalid access token"},
		{"other", errors.New("boom"), "authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Auth(&stubValidator{err: tt.err})(http.HandlerFunc(okHandler))

			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", "Bearer abc")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.detail)
		})
	}
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			validator := &stubValidator{userID: "usr_1"}
			var gotUserID string
			handler := middleware.Auth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID = middleware.GetUserID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", prefix+"tok")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "usr_1", gotUserID)
			assert.Equal(t, "tok", validator.token)
		})
	}
}

func TestAuth_WithJWTService(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-signing-key-with-enough-entropy",
		Issuer:     "https://accounts.accessroute.app",
		Audience:   "accessroute-api",
	})
	token, _, err := svc.GenerateAccessToken("usr_walker")
	require.NoError(t, err)

	var gotUserID string
	handler := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = middleware.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr_walker", gotUserID)

	req = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token+"tampered")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserID_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetUserID(req.Context()))
	assert.Equal(t, "usr_2", middleware.GetUserID(middleware.WithUserID(req.Context(), "usr_2")))
}
