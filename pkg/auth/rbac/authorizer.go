package rbac

import (
	"context"
	"strings"
	"sync"

	"aurora/pkg/auth"
)

type RBACAuthorizer struct {
	roles map[string]*auth.Role
	mu    sync.RWMutex
}

func NewRBACAuthorizer() *RBACAuthorizer {
	return &RBACAuthorizer{
		roles: make(map[string]*auth.Role),
	}
}

// NewDefaultAuthorizer knows the viewer and operator roles.
func NewDefaultAuthorizer() *RBACAuthorizer {
	r := NewRBACAuthorizer()
	for _, role := range auth.DefaultRoles() {
		r.AddRole(role)
	}
	return r
}

func (r *RBACAuthorizer) AddRole(role *auth.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.Name] = role
}

func (r *RBACAuthorizer) Authorize(ctx context.Context, authCtx *auth.AuthContext, resource string, action string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, roleName := range authCtx.Roles {
		role, exists := r.roles[roleName]
		if !exists {
			continue
		}
		for _, perm := range role.Permissions {
			if r.matchesPermission(perm, resource, action) {
				return true, nil
			}
		}
	}

	for _, perm := range authCtx.Permissions {
		if r.matchesPermission(perm.Resource+":"+perm.Action, resource, action) {
			return perm.Effect == "allow", nil
		}
	}

	return false, nil
}

func (r *RBACAuthorizer) HasRole(ctx context.Context, authCtx *auth.AuthContext, role string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.roles[role]; !exists {
		return false, nil
	}
	for _, name := range authCtx.Roles {
		if name == role {
			return true, nil
		}
	}
	return false, nil
}

func (r *RBACAuthorizer) GetPermissions(ctx context.Context, authCtx *auth.AuthContext) ([]auth.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	permissions := make([]auth.Permission, 0)
	seen := make(map[string]bool)

	for _, roleName := range authCtx.Roles {
		role, exists := r.roles[roleName]
		if !exists {
			continue
		}
		for _, perm := range role.Permissions {
			if !seen[perm] {
				resource, action := r.parsePermission(perm)
				permissions = append(permissions, auth.Permission{
					Resource: resource,
					Action:   action,
					Effect:   "allow",
				})
				seen[perm] = true
			}
		}
	}

	for _, perm := range authCtx.Permissions {
		key := perm.Resource + ":" + perm.Action
		if !seen[key] {
			permissions = append(permissions, perm)
			seen[key] = true
		}
	}

	return permissions, nil
}

func (r *RBACAuthorizer) matchesPermission(perm, resource, action string) bool {
	parts := strings.Split(perm, ":")
	if len(parts) != 2 {
		return false
	}
	resourceMatch := parts[0] == "*" || parts[0] == resource
	if !resourceMatch {
		return false
	}
	return parts[1] == "*" || parts[1] == action
}

func (r *RBACAuthorizer) parsePermission(perm string) (string, string) {
	parts := strings.Split(perm, ":")
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return perm, "*"
}
