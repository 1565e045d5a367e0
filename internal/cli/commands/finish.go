package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
)

var completeCmd = &cobra.Command{
	Use:   "complete <agent> <id>",
	Short: "Mark a message as completed",
	Long: `Mark a claimed message as completed and move its record into the
processed area of the agent's inbox.`,
	Args: cobra.ExactArgs(2),
	RunE: runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	ok, err := q.Complete(cmd.Context(), args[1])
	if err != nil {
		return err
	}
	if !ok {
		ui.Warning("No message %s in inbox of %s", args[1], args[0])
		return nil
	}

	ui.Success("Message %s completed", args[1])
	return nil
}

var failCmd = &cobra.Command{
	Use:   "fail <agent> <id> [reason...]",
	Short: "Mark a message as failed",
	Long: `Mark a claimed message as failed, record the reason in its metadata,
and move its record into the failed area of the agent's inbox.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFail,
}

func runFail(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	reason := strings.Join(args[2:], " ")
	ok, err := q.Fail(cmd.Context(), args[1], reason)
	if err != nil {
		return err
	}
	if !ok {
		ui.Warning("No message %s in inbox of %s", args[1], args[0])
		return nil
	}

	ui.Success("Message %s failed", args[1])
	return nil
}
