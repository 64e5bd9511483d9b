package main

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pricing-cli/internal/config"
	"github.com/sells-group/pricing-cli/internal/identity"
)

func TestRenderConfig_MasksSecrets(t *testing.T) {
	c := &config.Config{}
	c.Store.Driver = "postgres"
	c.Store.DatabaseURL = "postgres://pricing:hunter2@db/pricing"
	c.Cache.RedisURL = "redis://:pw@cache:6379/0"
	c.Auth.JWTSecret = "top-secret"
	c.Server.Port = 8080

	out, err := renderConfig(c)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
	assert.NotContains(t, string(out), "top-secret")
	assert.NotContains(t, string(out), ":pw@")

	var back config.Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, 8080, back.Server.Port)
	assert.Equal(t, redacted, back.Auth.JWTSecret)

	// The caller's config is untouched.
	assert.Equal(t, "top-secret", c.Auth.JWTSecret)
}

func TestRenderConfig_KeepsSQLitePath(t *testing.T) {
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = "pricing.db"

	out, err := renderConfig(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), "database_url: pricing.db")
}

func TestTokenIdentity(t *testing.T) {
	tenant := uuid.New()

	id, err := tokenIdentity("TourOperator", tenant.String(), "ops")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleTourOperator, id.Role)
	assert.Equal(t, tenant, id.TenantID)

	id, err = tokenIdentity("Admin", "", "root")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, id.Role)
	assert.Equal(t, uuid.Nil, id.TenantID)

	_, err = tokenIdentity("TourOperator", "", "ops")
	assert.Error(t, err)

	_, err = tokenIdentity("Owner", "", "ops")
	assert.Error(t, err)
}

func TestTokenCommand_SignsVerifiableToken(t *testing.T) {
	t.Setenv("PRICING_AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("PRICING_LOG_LEVEL", "error")
	tenant := uuid.New()

	out, err := execute(t, "token", "--role", "TourOperator", "--tenant", tenant.String(), "--subject", "ops", "--ttl", "1h")
	require.NoError(t, err)

	id, err := identity.NewTokens(identity.Config{Secret: "cli-secret"}).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, tenant, id.TenantID)
	assert.Equal(t, "ops", id.Subject)
}
