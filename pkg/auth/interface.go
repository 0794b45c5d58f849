package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Roles understood by the control API.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

type AuthProvider interface {
	Name() string
	ValidateToken(ctx context.Context, token string) (*AuthResult, error)
	RevokeToken(ctx context.Context, token string) error
}

type AuthResult struct {
	Success   bool
	Subject   string
	Roles     []string
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Role grants permissions written as "resource:action"; either half may be
// "*".
type Role struct {
	Name        string
	Permissions []string
	Description string
}

type Permission struct {
	Resource string
	Action   string
	Effect   string
}

type AuthContext struct {
	Subject       string
	Roles         []string
	Permissions   []Permission
	Token         string
	Authenticated bool
	ExpiresAt     time.Time
}

type Authorizer interface {
	Authorize(ctx context.Context, authCtx *AuthContext, resource string, action string) (bool, error)
	HasRole(ctx context.Context, authCtx *AuthContext, role string) (bool, error)
}

// DefaultRoles returns the viewer and operator roles. Viewers may read
// everything; operators may also change state.
func DefaultRoles() []*Role {
	return []*Role{
		{
			Name:        RoleViewer,
			Permissions: []string{"*:read"},
			Description: "read extension list, stats, messages and artifacts",
		},
		{
			Name:        RoleOperator,
			Permissions: []string{"*:*"},
			Description: "full control of the render loop and configuration",
		},
	}
}

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
