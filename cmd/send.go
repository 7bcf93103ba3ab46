package cmd

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passkey-vault/wallet/internal/chains"
	"github.com/passkey-vault/wallet/internal/dispatch"
	"github.com/passkey-vault/wallet/internal/spending"
)

// sendCmd plans and executes a transfer, same-chain or bridged.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send tokens from a vault, bridging across chains when needed",
	Long: `Validates the transfer, decides between a same-chain send and a
Wormhole-routed bridge, checks the advisory spending limit and submits.
Use --dry-run to see the plan without signing anything.`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().Uint64("source-chain", 0, "Source chain id (required)")
	sendCmd.Flags().Uint64("target-chain", 0, "Target chain id (defaults to the source chain)")
	sendCmd.Flags().String("token", "", "Token symbol or address (required)")
	sendCmd.Flags().String("recipient", "", "Recipient address on the target chain (required)")
	sendCmd.Flags().String("amount", "", "Amount in token base units (required)")
	sendCmd.Flags().Bool("dry-run", false, "Plan only; do not submit")

	sendCmd.MarkFlagRequired("source-chain")
	sendCmd.MarkFlagRequired("token")
	sendCmd.MarkFlagRequired("recipient")
	sendCmd.MarkFlagRequired("amount")
}

func runSend(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	session, err := buildSession(logger)
	if err != nil {
		return err
	}
	if _, restored := session.Resume(context.Background()); !restored {
		return fmt.Errorf("no identity on this device; run register first")
	}

	sourceChain, _ := cmd.Flags().GetUint64("source-chain")
	targetChain, _ := cmd.Flags().GetUint64("target-chain")
	if targetChain == 0 {
		targetChain = sourceChain
	}
	token, _ := cmd.Flags().GetString("token")
	recipient, _ := cmd.Flags().GetString("recipient")
	amountStr, _ := cmd.Flags().GetString("amount")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %v", amountStr, err)
	}

	ctx := context.Background()
	preview, err := session.PlanTransfer(ctx, dispatch.Intent{
		SourceChainID: chains.ChainID(sourceChain),
		TargetChainID: chains.ChainID(targetChain),
		Token:         token,
		Recipient:     recipient,
		Amount:        amount,
	})
	if err != nil {
		return err
	}

	describePlan(preview.Plan)
	if preview.Advisory != nil && !preview.Advisory.Allowed {
		describeAdvisory(*preview.Advisory)
		if !dryRun {
			return fmt.Errorf("transfer exceeds the daily limit; pick one of the suggested actions or re-run with --dry-run")
		}
	}
	if dryRun {
		return nil
	}

	outcome, err := session.ExecuteTransfer(ctx, preview.Plan)
	if err != nil {
		return err
	}

	if outcome.Receipt != nil {
		logger.Info("Transfer submitted",
			zap.String("txHash", outcome.Receipt.TxHash),
			zap.Uint64("sequence", outcome.Receipt.Sequence))
		return nil
	}

	logger.Info("Bridge dispatched", zap.String("bridgeId", outcome.BridgeID))
	for update := range outcome.Updates {
		if update.Terminal {
			if update.Err != nil {
				return fmt.Errorf("bridge failed: %v", update.Err)
			}
			logger.Info("Bridge completed",
				zap.String("txHash", update.Receipt.TxHash),
				zap.Uint64("sequence", update.Receipt.Sequence))
			return nil
		}
		fmt.Printf("  step %d/%d  %s\n", update.Step, update.TotalSteps, update.Message)
	}
	return nil
}

func describePlan(plan dispatch.Plan) {
	fmt.Printf("Plan: %s via %s signing\n", plan.Mode, plan.SigningMode)
	switch plan.SelfTransfer {
	case dispatch.SelfTransferCrossChain:
		fmt.Println("Moving funds to your own vault on the target chain.")
	case dispatch.SelfTransferSameChain:
		fmt.Println("Note: the recipient is your own vault on this chain.")
	}
}

func describeAdvisory(result spending.CheckResult) {
	fmt.Printf("Daily limit check: requested %s, remaining %s\n",
		result.Requested, result.Remaining)
	for _, s := range result.Suggestions {
		switch s.Kind {
		case spending.SuggestUnpauseVault:
			fmt.Println("  - unpause the vault first")
		case spending.SuggestSendPartial:
			fmt.Printf("  - send %s now and the rest after the reset\n", s.Amount)
		case spending.SuggestIncreaseLimit:
			fmt.Printf("  - raise the daily limit to %s\n", s.NewLimit)
		case spending.SuggestWaitForReset:
			fmt.Printf("  - wait %s for the daily reset\n", s.Wait)
		}
	}
}
