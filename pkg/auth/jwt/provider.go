package jwt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"aurora/pkg/auth"
	"aurora/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// SigningSecretKey is the secret store key holding the HMAC signing key.
const SigningSecretKey = "api_signing_key"

type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

type JWTProvider struct {
	name          string
	secretKey     []byte
	signingMethod jwt.SigningMethod
	issuer        string
	expiration    time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time
}

type JWTConfig struct {
	Name       string        `json:"name"`
	SecretKey  string        `json:"secret_key"`
	Algorithm  string        `json:"algorithm"`
	Issuer     string        `json:"issuer"`
	Expiration time.Duration `json:"expiration"`
}

func NewJWTProvider(cfg *JWTConfig) (*JWTProvider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("signing secret is empty")
	}
	provider := &JWTProvider{
		name:       cfg.Name,
		secretKey:  []byte(cfg.SecretKey),
		issuer:     cfg.Issuer,
		expiration: cfg.Expiration,
		revoked:    make(map[string]time.Time),
	}
	if provider.expiration <= 0 {
		provider.expiration = 24 * time.Hour
	}
	switch cfg.Algorithm {
	case "HS256", "":
		provider.signingMethod = jwt.SigningMethodHS256
	case "HS384":
		provider.signingMethod = jwt.SigningMethodHS384
	case "HS512":
		provider.signingMethod = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", cfg.Algorithm)
	}
	return provider, nil
}

// LoadSigningSecret reads the signing key from store, creating a random
// one the first time.
func LoadSigningSecret(store config.SecretStore) (string, error) {
	secret, err := store.GetSecret(SigningSecretKey)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, config.ErrSecretNotFound) {
		return "", fmt.Errorf("failed to read signing secret: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate signing secret: %w", err)
	}
	secret = hex.EncodeToString(buf)
	if err := store.SetSecret(SigningSecretKey, secret); err != nil {
		return "", fmt.Errorf("failed to store signing secret: %w", err)
	}
	return secret, nil
}

func (p *JWTProvider) Name() string {
	return p.name
}

// Issue mints a token for subject. A zero ttl uses the configured
// expiration.
func (p *JWTProvider) Issue(subject string, roles []string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = p.expiration
	}
	id := make([]byte, 12)
	if _, err := rand.Read(id); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   subject,
			ID:        hex.EncodeToString(id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(p.signingMethod, claims).SignedString(p.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (p *JWTProvider) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

func (p *JWTProvider) ValidateToken(ctx context.Context, tokenString string) (*auth.AuthResult, error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	_, revoked := p.revoked[claims.ID]
	p.mu.Unlock()
	if revoked {
		return nil, auth.ErrTokenRevoked
	}

	return &auth.AuthResult{
		Success:   true,
		Subject:   claims.Subject,
		Roles:     claims.Roles,
		Token:     tokenString,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RevokeToken rejects the token until it would have expired anyway. Revocations
// are kept in memory only.
func (p *JWTProvider) RevokeToken(ctx context.Context, tokenString string) error {
	claims, err := p.parse(tokenString)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, exp := range p.revoked {
		if exp.Before(now) {
			delete(p.revoked, id)
		}
	}
	p.revoked[claims.ID] = claims.ExpiresAt.Time
	return nil
}
