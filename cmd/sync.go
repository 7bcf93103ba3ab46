package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passkey-vault/wallet/internal/syncrisk"
	"github.com/passkey-vault/wallet/internal/wallet"
)

// syncCmd groups the passkey sync-risk operations.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage the passkey backup confirmation",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current sync-risk estimate",
	RunE:  runSyncStatus,
}

var syncConfirmCmd = &cobra.Command{
	Use:   "confirm [yes|no|not_sure]",
	Short: "Record whether your passkey is synced to another device",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncConfirm,
}

var syncDismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Silence the weekly backup reminder",
	RunE:  runSyncDismiss,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncStatusCmd, syncConfirmCmd, syncDismissCmd)
}

func syncSession(cmd *cobra.Command, args []string) (*wallet.Session, error) {
	logger := configureLogging(cmd, args)
	return buildSession(logger)
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	session, err := syncSession(cmd, args)
	if err != nil {
		return err
	}

	flags := session.SyncStatus()
	fmt.Printf("Risk level: %s\n", flags.Risk)
	if flags.ShowWeeklyReminder {
		fmt.Println("Weekly reminder is due: confirm your passkey backup.")
		session.MarkSyncReminderShown()
	} else if flags.ShowBanner {
		fmt.Println("Backup status unconfirmed.")
	} else {
		fmt.Println("Passkey backup confirmed.")
	}
	return nil
}

func runSyncConfirm(cmd *cobra.Command, args []string) error {
	session, err := syncSession(cmd, args)
	if err != nil {
		return err
	}

	var choice syncrisk.Choice
	switch args[0] {
	case "yes":
		choice = syncrisk.ChoiceYes
	case "no":
		choice = syncrisk.ChoiceNo
	case "not_sure":
		choice = syncrisk.ChoiceNotSure
	default:
		return fmt.Errorf("choice must be yes, no or not_sure, got %q", args[0])
	}

	session.ConfirmSyncChoice(choice)
	fmt.Printf("Recorded: %s (risk level now %s)\n", choice, session.SyncStatus().Risk)
	return nil
}

func runSyncDismiss(cmd *cobra.Command, args []string) error {
	session, err := syncSession(cmd, args)
	if err != nil {
		return err
	}
	session.DismissSyncReminder()
	fmt.Println("Weekly reminder dismissed until the next confirmation.")
	return nil
}
