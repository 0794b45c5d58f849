package rbac

import (
	"context"
	"testing"

	"aurora/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	r := NewDefaultAuthorizer()
	ctx := context.Background()

	viewer := &auth.AuthContext{Roles: []string{auth.RoleViewer}}
	operator := &auth.AuthContext{Roles: []string{auth.RoleOperator}}
	nobody := &auth.AuthContext{Roles: []string{"intern"}}

	tests := []struct {
		name     string
		ctx      *auth.AuthContext
		resource string
		action   string
		want     bool
	}{
		{"viewer reads", viewer, "extensions", "read", true},
		{"viewer writes", viewer, "extensions", "write", false},
		{"operator writes", operator, "config", "write", true},
		{"unknown role", nobody, "stats", "read", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := r.Authorize(ctx, tt.ctx, tt.resource, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAuthorize_ExplicitPermissions(t *testing.T) {
	r := NewRBACAuthorizer()
	authCtx := &auth.AuthContext{Permissions: []auth.Permission{
		{Resource: "capture", Action: "write", Effect: "allow"},
		{Resource: "config", Action: "*", Effect: "deny"},
	}}

	ok, err := r.Authorize(context.Background(), authCtx, "capture", "write")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Authorize(context.Background(), authCtx, "config", "write")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasRoleAndPermissions(t *testing.T) {
	r := NewDefaultAuthorizer()
	authCtx := &auth.AuthContext{Roles: []string{auth.RoleViewer, "ghost"}}

	has, err := r.HasRole(context.Background(), authCtx, auth.RoleViewer)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = r.HasRole(context.Background(), authCtx, "ghost")
	require.NoError(t, err)
	assert.False(t, has)

	perms, err := r.GetPermissions(context.Background(), authCtx)
	require.NoError(t, err)
	assert.Equal(t, []auth.Permission{{Resource: "*", Action: "read", Effect: "allow"}}, perms)
}
