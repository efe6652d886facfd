package Commands

import (
	"errors"
	"fmt"
	"time"

	"AviCRM/middleware"

	"github.com/spf13/cobra"
)

var (
	tokenUsername   string
	tokenPermission int
	tokenTTL        time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a JWT for an operator or a mobile user",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "Username the token is issued to")
	tokenCmd.Flags().IntVar(&tokenPermission, "permission", middleware.PermissionMobile, "Permission level (1 mobile, 3 admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")
	tokenCmd.MarkFlagRequired("username")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set; authentication is disabled")
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, tokenUsername, tokenPermission, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
