package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/gqlmeta/internal/web/auth"
)

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	var (
		user   string
		roles  []string
		claims map[string]string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		Long: `Sign a token with auth.jwt_secret. Roles select ACL permissions and
claims feed $claim placeholders in ACL filters.

Examples:
  gqlmeta token --user u1 --role member
  gqlmeta token --user admin --role admin --claim org=acme --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			extra := make(map[string]any, len(claims))
			for k, v := range claims {
				extra[k] = v
			}

			token, err := auth.NewAuthService(cfg.Auth.JWTSecret, ttl).GenerateToken(user, roles, extra)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User id (sub claim)")
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "Role to grant (repeatable)")
	cmd.Flags().StringToStringVar(&claims, "claim", nil, "Extra claim as key=value (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: auth.token_ttl)")
	cmd.MarkFlagRequired("user")
	return cmd
}
