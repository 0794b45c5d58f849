package jwt

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"aurora/pkg/auth"
	"aurora/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, issuer string) *JWTProvider {
	t.Helper()
	p, err := NewJWTProvider(&JWTConfig{Name: "aurora", SecretKey: "test-secret", Issuer: issuer})
	require.NoError(t, err)
	return p
}

func TestIssueAndValidate(t *testing.T) {
	p := newProvider(t, "aurora")

	token, expiresAt, err := p.Issue("cli", []string{auth.RoleOperator}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	result, err := p.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "cli", result.Subject)
	assert.Equal(t, []string{auth.RoleOperator}, result.Roles)
	assert.NotEmpty(t, result.TokenID)
}

func TestValidate_Rejects(t *testing.T) {
	p := newProvider(t, "aurora")
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "aurora",
			Subject:   "cli",
			ExpiresAt: jwt.NewNumericDate(past),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = p.ValidateToken(ctx, expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	other := newProvider(t, "someone-else")
	foreign, _, err := other.Issue("cli", nil, time.Hour)
	require.NoError(t, err)
	_, err = p.ValidateToken(ctx, foreign)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = p.ValidateToken(ctx, "not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	wrongKey, err := NewJWTProvider(&JWTConfig{SecretKey: "other", Issuer: "aurora"})
	require.NoError(t, err)
	forged, _, err := wrongKey.Issue("cli", []string{auth.RoleOperator}, time.Hour)
	require.NoError(t, err)
	_, err = p.ValidateToken(ctx, forged)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRevokeToken(t *testing.T) {
	p := newProvider(t, "aurora")
	ctx := context.Background()

	token, _, err := p.Issue("cli", nil, time.Hour)
	require.NoError(t, err)
	require.NoError(t, p.RevokeToken(ctx, token))

	_, err = p.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
}

func TestNewJWTProvider_Config(t *testing.T) {
	_, err := NewJWTProvider(&JWTConfig{SecretKey: "k", Algorithm: "RS256"})
	assert.Error(t, err)
	_, err = NewJWTProvider(&JWTConfig{})
	assert.Error(t, err)

	p, err := NewJWTProvider(&JWTConfig{SecretKey: "k", Algorithm: "HS512"})
	require.NoError(t, err)
	assert.Equal(t, "HS512", p.signingMethod.Alg())
}

func TestLoadSigningSecret(t *testing.T) {
	enc, err := config.NewAESEncryption([]byte("master"))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := config.NewFileSecretStore(t.TempDir(), enc, logger)
	require.NoError(t, err)

	first, err := LoadSigningSecret(store)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := LoadSigningSecret(store)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
