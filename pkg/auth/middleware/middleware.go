package middleware

import (
	"context"
	"net/http"
	"strings"

	"aurora/pkg/auth"
)

type contextKey struct{}

type AuthMiddleware struct {
	authorizer  auth.Authorizer
	providers   []auth.AuthProvider
	exemptPaths []string
	logger      auth.Logger
}

func NewAuthMiddleware(authorizer auth.Authorizer, logger auth.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authorizer: authorizer,
		logger:     logger,
		exemptPaths: []string{
			"/v1/healthz",
		},
	}
}

func (m *AuthMiddleware) AddProvider(provider auth.AuthProvider) {
	m.providers = append(m.providers, provider)
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, path := range m.exemptPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}
		token := parts[1]

		var authResult *auth.AuthResult
		for _, provider := range m.providers {
			result, err := provider.ValidateToken(r.Context(), token)
			if err == nil && result.Success {
				authResult = result
				break
			}
			if err != nil {
				m.logger.Debug("token rejected", "provider", provider.Name(), "error", err)
			}
		}
		if authResult == nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		authCtx := &auth.AuthContext{
			Subject:       authResult.Subject,
			Roles:         authResult.Roles,
			Token:         token,
			Authenticated: true,
			ExpiresAt:     authResult.ExpiresAt,
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
	})
}

// RequirePermission rejects requests whose roles do not grant
// resource:action.
func (m *AuthMiddleware) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			authorized, err := m.authorizer.Authorize(r.Context(), authCtx, resource, action)
			if err != nil || !authorized {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithAuthContext(ctx context.Context, authCtx *auth.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, authCtx)
}

func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, _ := r.Context().Value(contextKey{}).(*auth.AuthContext)
	return authCtx
}
