package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wastecollect/waste-dispatch-api/api"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/models"
)

var (
	tokenRole string
	tokenOrg  string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <actor-id>",
	Short: "Issue a bearer token signed with jwt_secret, for local testing",
	Args:  cobra.ExactArgs(1),
	RunE:  issueToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(models.RoleUser), "user, collector, org_admin or admin")
	tokenCmd.Flags().StringVar(&tokenOrg, "org", "", "organization id")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func issueToken(cmd *cobra.Command, args []string) error {
	conf, err := config.New(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if conf.JWTSecret == "" {
		return errors.New("jwt_secret is not set")
	}
	role, ok := models.ParseRole(tokenRole)
	if !ok {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	token, err := api.SignActorToken(conf.JWTSecret, models.Actor{ID: args[0], Role: role, OrganizationID: tokenOrg}, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
