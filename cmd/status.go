package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd shows vault records, bridge progress and sync-risk flags.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault state across all configured chains",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	session, err := buildSession(logger)
	if err != nil {
		return err
	}

	records, restored := session.Resume(context.Background())
	if !restored {
		return fmt.Errorf("no identity on this device; run register first")
	}

	fmt.Println("Vaults:")
	for _, rec := range records {
		address := rec.Address
		if address == "" {
			address = "(unknown)"
		}
		line := fmt.Sprintf("  chain %-6d %-10s %s", rec.ChainID, rec.State, address)
		if rec.Deployed {
			line += "  deployed"
		}
		if !rec.Balance.IsZero() {
			line += fmt.Sprintf("  balance=%s", rec.Balance)
		}
		if rec.Err != nil {
			line += fmt.Sprintf("  error=%v", rec.Err)
		}
		fmt.Println(line)
	}

	if progress, ok := session.BridgeProgress(); ok {
		fmt.Printf("\nBridge in flight: step %d/%d %s\n",
			progress.Step, progress.TotalSteps, progress.Message)
	}
	if history := session.BridgeHistory(); len(history) > 0 {
		fmt.Println("\nBridge history:")
		for _, r := range history {
			fmt.Printf("  %s  chain %d -> %d  %s %s  %s\n",
				r.ID, r.SourceChain, r.TargetChain, r.Amount, r.Token, r.Outcome)
		}
	}

	flags := session.SyncStatus()
	if flags.ShowWeeklyReminder {
		fmt.Println("\nYour passkey may not be backed up. Confirm with: passkey-wallet sync confirm")
		session.MarkSyncReminderShown()
	} else if flags.ShowBanner {
		fmt.Println("\nPasskey sync status unconfirmed (risk: " + string(flags.Risk) + ").")
	}
	return nil
}
