package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
)

var listCmd = &cobra.Command{
	Use:   "list <agent>",
	Short: "List pending messages in dequeue order",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	pending, err := q.ListPending(cmd.Context())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		ui.Info("No pending messages for %s", args[0])
		return nil
	}

	tbl := ui.NewTable("ID", "TYPE", "FROM", "PRIORITY", "AGE", "TTL")
	for _, m := range pending {
		from := m.FromAgent
		if from == "" {
			from = "-"
		}
		ttl := "-"
		if m.TimeToLive > 0 {
			ttl = time.Duration(m.TimeToLive).String()
		}
		tbl.AddRow(m.ID, m.Type, from, m.Priority, ui.FormatAge(time.Since(m.CreatedAt)), ttl)
	}
	tbl.Print()
	return nil
}

var outboxCmd = &cobra.Command{
	Use:   "outbox <agent>",
	Short: "List published results, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutbox,
}

// Flags for outbox command
var outboxLimit int

func init() {
	outboxCmd.Flags().IntVarP(&outboxLimit, "limit", "n", 10, "Maximum entries to show (0 = all)")
}

func runOutbox(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	results, err := q.ListOutbox(cmd.Context(), outboxLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		ui.Info("Outbox of %s is empty", args[0])
		return nil
	}

	tbl := ui.NewTable("ID", "TYPE", "TO", "STATUS", "CREATED")
	for _, m := range results {
		to := m.ToAgent
		if to == "" {
			to = "-"
		}
		tbl.AddRow(m.ID, m.Type, to, m.Status, ui.FormatTime(m.CreatedAt))
	}
	tbl.Print()
	return nil
}
