package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mtoda/cairn/internal/cli/ui"
	"github.com/mtoda/cairn/internal/core/config"
	"github.com/mtoda/cairn/internal/core/mailbox"
)

var initCmd = &cobra.Command{
	Use:   "init [agent...]",
	Short: "Initialize a cairn project and, optionally, agent mailboxes",
	Long: `Initialize the current directory as a cairn project by creating
.cairn/config.yaml, then create a mailbox for each named agent.

Examples:
  # Initialize the project only
  cairn init
  # Initialize and create two mailboxes
  cairn init planner builder`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	projectRoot, err := config.FindProjectRoot()
	if err != nil {
		// Not in a project yet; initialize here
		projectRoot, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	configManager := config.NewManager(projectRoot)
	if !configManager.IsInitialized() {
		if err := configManager.Save(config.DefaultConfig()); err != nil {
			return err
		}
		ui.Success("Initialized cairn project in %s", projectRoot)
	}

	cfg, err := configManager.Load()
	if err != nil {
		return err
	}

	for _, agent := range args {
		mbox, err := mailbox.New(configManager.AgentsRootPath(cfg), agent)
		if err != nil {
			return err
		}
		if ok := mbox.EnsureStructure(); !ok {
			return fmt.Errorf("failed to create mailbox for %s", agent)
		}
		ui.Success("Created mailbox for %s", agent)
	}
	return nil
}
