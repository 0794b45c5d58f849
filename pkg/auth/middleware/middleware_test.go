package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aurora/pkg/auth"
	"aurora/pkg/auth/jwt"
	"aurora/pkg/auth/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (http.Handler, *jwt.JWTProvider) {
	t.Helper()
	provider, err := jwt.NewJWTProvider(&jwt.JWTConfig{Name: "aurora", SecretKey: "s", Issuer: "aurora"})
	require.NoError(t, err)

	m := NewAuthMiddleware(rbac.NewDefaultAuthorizer(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.AddProvider(provider)

	mux := http.NewServeMux()
	mux.Handle("GET /v1/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.Handle("GET /v1/stats", m.RequirePermission("stats", "read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, GetAuthContext(r).Subject)
	})))
	mux.Handle("POST /v1/config", m.RequirePermission("config", "write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	return m.Middleware(mux), provider
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	h, provider := setup(t)

	viewer, _, err := provider.Issue("dashboard", []string{auth.RoleViewer}, time.Hour)
	require.NoError(t, err)
	operator, _, err := provider.Issue("cli", []string{auth.RoleOperator}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/healthz", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/v1/stats", "garbage").Code)

	rec := do(h, http.MethodGet, "/v1/stats", viewer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodPost, "/v1/config", viewer).Code)
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/v1/config", operator).Code)
}

func TestMiddleware_BadHeader(t *testing.T) {
	h, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
