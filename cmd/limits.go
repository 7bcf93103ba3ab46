package cmd

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/wallet"
)

// limitsCmd groups the spending-limit operations. The chain is always
// authoritative; every mutation re-fetches before reporting.
var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Inspect and change the vault's on-chain spending limits",
}

var limitsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current spending-limit snapshot",
	RunE:  runLimitsShow,
}

var limitsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether an amount would pass the daily limit",
	RunE:  runLimitsCheck,
}

var limitsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a new daily limit",
	RunE:  runLimitsSet,
}

var limitsPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause all spending from the vault",
	RunE:  runLimitsPause,
}

var limitsUnpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume spending from the vault",
	RunE:  runLimitsUnpause,
}

func init() {
	rootCmd.AddCommand(limitsCmd)
	limitsCmd.AddCommand(limitsShowCmd, limitsCheckCmd, limitsSetCmd, limitsPauseCmd, limitsUnpauseCmd)

	limitsCmd.PersistentFlags().Uint64("chain", 0, "Chain id of the vault (required)")
	limitsCmd.MarkPersistentFlagRequired("chain")

	limitsSetCmd.Flags().String("daily-limit", "", "New daily limit in token base units, 0 for unlimited (required)")
	limitsSetCmd.MarkFlagRequired("daily-limit")

	limitsCheckCmd.Flags().String("amount", "", "Hypothetical amount in token base units (required)")
	limitsCheckCmd.MarkFlagRequired("amount")
}

func limitsSession(cmd *cobra.Command, args []string) (*wallet.Session, chains.ChainID, error) {
	logger := configureLogging(cmd, args)

	session, err := buildSession(logger)
	if err != nil {
		return nil, 0, err
	}
	if _, restored := session.Resume(context.Background()); !restored {
		return nil, 0, fmt.Errorf("no identity on this device; run register first")
	}

	chainID, _ := cmd.Flags().GetUint64("chain")
	return session, chains.ChainID(chainID), nil
}

func runLimitsShow(cmd *cobra.Command, args []string) error {
	session, chainID, err := limitsSession(cmd, args)
	if err != nil {
		return err
	}

	view, err := session.SpendingStatus(context.Background(), chainID)
	if err != nil {
		return err
	}

	if view.Snapshot.Unlimited() {
		fmt.Println("Daily limit: unlimited")
	} else {
		fmt.Printf("Daily limit: %s (spent %s, remaining %s, %.0f%% used)\n",
			view.Snapshot.DailyLimit, view.Snapshot.DailySpent, view.Remaining, view.PercentUsed)
		fmt.Printf("Resets in: %s\n", view.ResetIn)
	}
	if view.Snapshot.Paused {
		fmt.Println("Vault is PAUSED; no spending is possible until unpause.")
	}
	return nil
}

func runLimitsCheck(cmd *cobra.Command, args []string) error {
	session, chainID, err := limitsSession(cmd, args)
	if err != nil {
		return err
	}

	amountStr, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %v", amountStr, err)
	}

	result, err := session.EvaluateSpend(context.Background(), chainID, amount)
	if err != nil {
		return err
	}

	if result.Allowed {
		fmt.Printf("Allowed: %s fits in the remaining allowance (%s).\n", result.Requested, result.Remaining)
		return nil
	}
	describeAdvisory(result)
	return nil
}

func runLimitsSet(cmd *cobra.Command, args []string) error {
	session, chainID, err := limitsSession(cmd, args)
	if err != nil {
		return err
	}

	limitStr, _ := cmd.Flags().GetString("daily-limit")
	newLimit, err := decimal.NewFromString(limitStr)
	if err != nil {
		return fmt.Errorf("invalid limit %q: %v", limitStr, err)
	}

	snapshot, err := session.RequestLimitIncrease(context.Background(), chainID, newLimit)
	if err != nil {
		return err
	}
	zap.L().Info("Daily limit updated",
		zap.Uint64("chainId", uint64(chainID)),
		zap.String("dailyLimit", snapshot.DailyLimit.String()))
	return nil
}

func runLimitsPause(cmd *cobra.Command, args []string) error {
	session, chainID, err := limitsSession(cmd, args)
	if err != nil {
		return err
	}
	if err := session.PauseVault(context.Background(), chainID); err != nil {
		return err
	}
	zap.L().Info("Vault paused", zap.Uint64("chainId", uint64(chainID)))
	return nil
}

func runLimitsUnpause(cmd *cobra.Command, args []string) error {
	session, chainID, err := limitsSession(cmd, args)
	if err != nil {
		return err
	}
	if err := session.UnpauseVault(context.Background(), chainID); err != nil {
		return err
	}
	zap.L().Info("Vault unpaused", zap.Uint64("chainId", uint64(chainID)))
	return nil
}
