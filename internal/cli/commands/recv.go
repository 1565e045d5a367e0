package commands

import (
	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
)

var recvCmd = &cobra.Command{
	Use:   "recv <agent>",
	Short: "Claim the next pending message from an agent's inbox",
	Long: `Dequeue the highest-priority pending message from the agent's inbox.
The claimed message is marked as processing; finish it later with
'cairn complete' or 'cairn fail'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecv,
}

func runRecv(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	m, err := q.Dequeue(cmd.Context())
	if err != nil {
		return err
	}
	if m == nil {
		ui.Info("No pending messages for %s", args[0])
		return nil
	}

	ui.PrintMessage(m)
	return nil
}

var peekCmd = &cobra.Command{
	Use:   "peek <agent>",
	Short: "Show the next pending message without claiming it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeek,
}

func runPeek(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	m, err := q.Peek(cmd.Context())
	if err != nil {
		return err
	}
	if m == nil {
		ui.Info("No pending messages for %s", args[0])
		return nil
	}

	ui.PrintMessage(m)
	return nil
}
