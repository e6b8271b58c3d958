package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "valid bearer token", header: "Bearer abc123", expected: "abc123"},
		{name: "bearer with extra spaces", header: "Bearer   token-with-spaces   ", expected: "token-with-spaces"},
		{name: "lowercase bearer", header: "bearer token123", expected: "token123"},
		{name: "empty header", header: "", expected: ""},
		{name: "no bearer prefix", header: "token123", expected: ""},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, extractBearerToken(req))
		})
	}
}

func TestGetAuthContext(t *testing.T) {
	assert.Nil(t, GetAuthContext(context.Background()))

	authCtx := &domain.AuthContext{UserID: "u1", Role: domain.RoleAdmin}
	ctx := context.WithValue(context.Background(), authContextKey, authCtx)
	assert.Same(t, authCtx, GetAuthContext(ctx))

	wrongType := context.WithValue(context.Background(), authContextKey, "not-an-auth-context")
	assert.Nil(t, GetAuthContext(wrongType))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
		wantCalled bool
	}{
		{name: "missing token", wantStatus: http.StatusUnauthorized, wantError: "missing authorization token"},
		{name: "expired", header: "Bearer expired-token", wantStatus: http.StatusUnauthorized, wantError: "token expired"},
		{name: "invalid", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantError: "invalid token"},
		{name: "valid", header: "Bearer pi-token", wantStatus: http.StatusOK, wantCalled: true},
	}

	mw := NewAuthMiddleware(tokenAuth())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			mw.Authenticate(okHandler(&called)).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantError != "" {
				assert.Contains(t, rr.Body.String(), tt.wantError)
			}
		})
	}
}

func TestAuthMiddleware_Authenticate_SetsContext(t *testing.T) {
	mw := NewAuthMiddleware(tokenAuth())
	var got *domain.AuthContext
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuthContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.True(t, got.IsAdmin())
}

func TestAuthMiddleware_Authenticate_NoService(t *testing.T) {
	mw := NewAuthMiddleware(nil)
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()

	mw.Authenticate(okHandler(&called)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, called)
}

func withAuth(r *http.Request, role domain.Role) *http.Request {
	ctx := context.WithValue(r.Context(), authContextKey, &domain.AuthContext{UserID: "u", Role: role})
	return r.WithContext(ctx)
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	mw := NewAuthMiddleware(tokenAuth())

	t.Run("admin", func(t *testing.T) {
		var called bool
		rr := httptest.NewRecorder()
		mw.RequireAdmin(okHandler(&called)).ServeHTTP(rr, withAuth(httptest.NewRequest(http.MethodGet, "/", nil), domain.RoleAdmin))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, called)
	})

	t.Run("pi access is not admin", func(t *testing.T) {
		var called bool
		rr := httptest.NewRecorder()
		mw.RequireAdmin(okHandler(&called)).ServeHTTP(rr, withAuth(httptest.NewRequest(http.MethodGet, "/", nil), domain.RolePIAccess))
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.False(t, called)
	})

	t.Run("no context", func(t *testing.T) {
		var called bool
		rr := httptest.NewRecorder()
		mw.RequireAdmin(okHandler(&called)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called)
	})
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	mw := NewAuthMiddleware(tokenAuth())
	readers := mw.RequireRole(domain.RolePIAccess, domain.RoleNonPIAccess)

	tests := []struct {
		role       domain.Role
		wantStatus int
	}{
		{domain.RolePIAccess, http.StatusOK},
		{domain.RoleNonPIAccess, http.StatusOK},
		{domain.RoleSignedUp, http.StatusForbidden},
		{domain.RoleAdmin, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			var called bool
			rr := httptest.NewRecorder()
			readers(okHandler(&called)).ServeHTTP(rr, withAuth(httptest.NewRequest(http.MethodGet, "/", nil), tt.role))
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewLoggingMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(headerRequestID))
	out := buf.String()
	assert.Contains(t, out, `"path":"/api/v1/channels"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"method":"GET"`)
	assert.Contains(t, out, `"request_id":"`+rr.Header().Get(headerRequestID)+`"`)
}

func TestLoggingMiddleware_KeepsRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(slog.New(slog.NewJSONHandler(&buf, nil))).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set(headerRequestID, "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", rr.Header().Get(headerRequestID))
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}

func TestLoggingMiddleware_ProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(slog.New(slog.NewJSONHandler(&buf, nil))).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String(), "info handler drops debug probe lines")
}

func TestLoggingMiddleware_WebhookFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(slog.New(slog.NewJSONHandler(&buf, nil))).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/drive", nil)
	req.Header.Set(headerChannelID, "sdw-2-f1-abc")
	req.Header.Set(headerResourceState, "update")
	req.Header.Set(headerMessageNumber, "7")
	req.Header.Set(headerChannelToken, "secret")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"channel_id":"sdw-2-f1-abc"`)
	assert.Contains(t, out, `"resource_state":"update"`)
	assert.Contains(t, out, `"message_number":"7"`)
	assert.NotContains(t, out, "secret", "channel token is never logged")
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := NewRecoveryMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal server error")
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestResponseWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rw.statusCode)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
