// Package commands implements the cairn CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "cairn",
	Short: "File-based mailboxes for collaborating agents",
	Long: `Cairn lets independent agent processes exchange structured work items
and results through a shared filesystem, with no central broker.

Each agent owns a mailbox (inbox/outbox/memory/workspace/logs) under a
shared agents root. Senders enqueue messages into a recipient's inbox;
the recipient dequeues them in priority order and records completion or
failure. All coordination state lives in the files themselves.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(recvCmd)
	rootCmd.AddCommand(peekCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(failCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(outboxCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(cleanCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
