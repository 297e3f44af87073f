package main

import (
	"fmt"
	"time"

	"github.com/mkernan/questboard/internal/config"
	"github.com/mkernan/questboard/internal/identity"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		gm         bool
		admin      bool
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT",
		Long:  "Signs a token with the configured secret for local API testing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, userID, gm, admin, ttl)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	cmd.Flags().StringVar(&userID, "user", "", "user ID to assert (required)")
	cmd.Flags().BoolVar(&gm, "gm", false, "grant the gm role")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}

func runToken(cmd *cobra.Command, configPath, userID string, gm, admin bool, ttl time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	roles := []string{identity.RoleMember}
	if gm {
		roles = append(roles, identity.RoleGM)
	}
	if admin {
		roles = append(roles, identity.RoleAdmin)
	}

	token, err := identity.GenerateToken([]byte(cfg.Auth.JWTSecret), identity.Actor{
		UserID: userID,
		Roles:  roles,
	}, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
