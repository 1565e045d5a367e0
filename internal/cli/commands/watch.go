package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
	"github.com/mtoda/cairn/internal/core/message"
)

var watchCmd = &cobra.Command{
	Use:   "watch <agent>",
	Short: "Watch an agent's inbox and print new messages as they arrive",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	sub, err := q.Subscribe(func(m *message.Message) {
		ui.PrintMessage(m)
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()

	ui.Info("Watching inbox of %s (ctrl-c to stop)", args[0])

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
