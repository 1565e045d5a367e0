package commands

import (
	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
	"github.com/mtoda/cairn/internal/core/mailbox"
)

var infoCmd = &cobra.Command{
	Use:   "info <agent>",
	Short: "Show a per-area size snapshot of an agent's mailbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	infos, err := q.Mailbox().GetInfo()
	if err != nil {
		return err
	}

	// Fixed order so output is stable
	areas := []mailbox.Area{
		mailbox.AreaInbox,
		mailbox.AreaOutbox,
		mailbox.AreaMemory,
		mailbox.AreaWorkspace,
		mailbox.AreaLogs,
	}

	tbl := ui.NewTable("AREA", "FILES", "SIZE")
	for _, area := range areas {
		info := infos[area]
		tbl.AddRow(area, info.FileCount, ui.FormatSize(info.TotalSize))
	}
	tbl.Print()
	return nil
}

var cleanCmd = &cobra.Command{
	Use:   "clean <agent>",
	Short: "Wipe an agent's workspace area",
	Args:  cobra.ExactArgs(1),
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	q, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	removed, err := q.Mailbox().CleanWorkspace()
	if err != nil {
		return err
	}

	ui.Success("Removed %d workspace entries for %s", removed, args[0])
	return nil
}
