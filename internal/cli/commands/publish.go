package commands

import (
	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
	"github.com/mtoda/cairn/internal/core/message"
)

// Flags for publish command
var (
	publishTo   string
	publishFile string
)

var publishCmd = &cobra.Command{
	Use:   "publish <agent> <type> [payload]",
	Short: "Publish a result into an agent's outbox",
	Long: `Write a result record into the agent's own outbox. Published results
are terminal artifacts; they never enter the pending lifecycle.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishTo, "to", "", "Intended consumer of the result (defaults to the publishing agent)")
	publishCmd.Flags().StringVarP(&publishFile, "file", "f", "", "Read payload from file")
}

func runPublish(cmd *cobra.Command, args []string) error {
	agent, msgType := args[0], args[1]

	payload, err := readPayload(args[2:], publishFile)
	if err != nil {
		return err
	}

	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(agent)
	if err != nil {
		return err
	}

	m := message.New(agent, publishTo, msgType, payload)
	id, err := q.PublishResult(cmd.Context(), m)
	if err != nil {
		return err
	}

	ui.Success("Result %s published by %s", id, agent)
	return nil
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <agent>",
	Short: "Delete expired messages from an agent's inbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	removed, err := q.CleanupExpired(cmd.Context())
	if err != nil {
		return err
	}

	ui.Success("Removed %d expired message(s) from %s", removed, args[0])
	return nil
}
