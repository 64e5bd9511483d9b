// Package identity resolves the caller's tenant and role from a bearer token
// and guards routes by role and tenant.
package identity

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Role is an authorization role.
type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleTourOperator Role = "TourOperator"
)

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Role    Role
	// TenantID is uuid.Nil for callers not bound to a tour operator.
	TenantID uuid.UUID
}

// CanAccessTenant reports whether the caller may act for tenantID.
func (id Identity) CanAccessTenant(tenantID uuid.UUID) bool {
	return id.TenantID != uuid.Nil && id.TenantID == tenantID
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Claims is the token payload.
type Claims struct {
	Role           Role   `json:"role"`
	TourOperatorID string `json:"tourOperatorId,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the HS256 key and expected issuer and audience.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
}

// Tokens signs and verifies bearer tokens.
type Tokens struct {
	cfg Config
	now func() time.Time
}

// NewTokens creates a signer/verifier. An empty secret rejects every token.
func NewTokens(cfg Config) *Tokens {
	return &Tokens{cfg: cfg, now: time.Now}
}

// Sign issues a token for id valid for ttl.
func (t *Tokens) Sign(id Identity, ttl time.Duration) (string, error) {
	if t.cfg.Secret == "" {
		return "", eris.New("identity: no signing secret configured")
	}
	now := t.now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if t.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{t.cfg.Audience}
	}
	if id.TenantID != uuid.Nil {
		claims.TourOperatorID = id.TenantID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.Secret))
	if err != nil {
		return "", eris.Wrap(err, "identity: sign token")
	}
	return signed, nil
}

// Verify parses a token and returns its identity.
func (t *Tokens) Verify(raw string) (Identity, error) {
	if t.cfg.Secret == "" {
		return Identity{}, eris.New("identity: no signing secret configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	if t.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.cfg.Audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(t.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, eris.Wrap(err, "identity: verify token")
	}

	id := Identity{Subject: claims.Subject, Role: claims.Role}
	if claims.TourOperatorID != "" {
		tenant, err := uuid.Parse(claims.TourOperatorID)
		if err != nil {
			return Identity{}, eris.Wrap(err, "identity: tourOperatorId claim")
		}
		id.TenantID = tenant
	}
	return id, nil
}
