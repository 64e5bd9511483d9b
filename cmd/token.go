package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pricing-cli/internal/identity"
)

var (
	tokenRole    string
	tokenTenant  string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the API",
	Long:  "Signs an HS256 token with auth.jwt_secret. TourOperator tokens must name a tenant.",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := tokenIdentity(tokenRole, tokenTenant, tokenSubject)
		if err != nil {
			return err
		}
		signed, err := identity.NewTokens(identity.Config{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		}).Sign(id, tokenTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
		return err
	},
}

func tokenIdentity(role, tenant, subject string) (identity.Identity, error) {
	id := identity.Identity{Subject: subject}
	switch identity.Role(role) {
	case identity.RoleAdmin:
		id.Role = identity.RoleAdmin
	case identity.RoleTourOperator:
		id.Role = identity.RoleTourOperator
		tenantID, err := uuid.Parse(tenant)
		if err != nil {
			return identity.Identity{}, eris.Wrap(err, "TourOperator tokens need a valid --tenant")
		}
		id.TenantID = tenantID
	default:
		return identity.Identity{}, eris.Errorf("unknown role %q (want %s or %s)", role, identity.RoleAdmin, identity.RoleTourOperator)
	}
	return id, nil
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(identity.RoleTourOperator), "Admin or TourOperator")
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tour operator id (uuid)")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "pricing-cli", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
