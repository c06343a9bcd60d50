package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Manage the persisted call spacing ledger",
	Long: `Each API host has one ledger row holding the latest scheduled call time.
Every client sharing the store schedules after it, so separate processes keep
the configured spacing between them.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
