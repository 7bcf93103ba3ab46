package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// registerCmd creates a new identity and deploys its vaults.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a passkey identity and deploy its vaults",
	Long: `Creates a credential on this device, derives the deterministic vault
address on every configured chain and requests sponsored deployment where no
vault exists yet.`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("username", "", "Account username (required)")
	registerCmd.Flags().String("display-name", "", "Human-readable display name")
	registerCmd.MarkFlagRequired("username")
}

func runRegister(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	session, err := buildSession(logger)
	if err != nil {
		return err
	}

	username, _ := cmd.Flags().GetString("username")
	displayName, _ := cmd.Flags().GetString("display-name")
	if displayName == "" {
		displayName = username
	}

	results, err := session.Register(context.Background(), username, displayName)
	if err != nil {
		return fmt.Errorf("registration failed: %v", err)
	}

	logger.Info("Identity registered", zap.String("username", username))
	for _, r := range results {
		switch {
		case r.Err != nil:
			logger.Warn("Vault deployment failed",
				zap.Uint64("chainId", uint64(r.ChainID)),
				zap.Error(r.Err))
		case r.AlreadyExists:
			logger.Info("Vault already deployed",
				zap.Uint64("chainId", uint64(r.ChainID)),
				zap.String("address", r.Address))
		default:
			logger.Info("Vault deployed",
				zap.Uint64("chainId", uint64(r.ChainID)),
				zap.String("address", r.Address))
		}
	}

	flags := session.SyncStatus()
	if flags.ShowBanner {
		fmt.Println("Reminder: confirm your passkey is synced to a second device (passkey-wallet sync confirm).")
	}
	return nil
}
