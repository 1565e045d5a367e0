package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mtoda/cairn/internal/core/config"
	"github.com/mtoda/cairn/internal/core/logger"
	"github.com/mtoda/cairn/internal/core/queue"
	"github.com/mtoda/cairn/internal/core/registry"
)

// cliLogger builds the logger shared by all commands. Debug output is
// opt-in via --verbose.
func cliLogger() logger.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logger.New(logger.WithLevel(level))
}

// loadProject locates the project root and loads its configuration.
func loadProject() (*config.Manager, *config.Config, error) {
	projectRoot, err := config.FindProjectRoot()
	if err != nil {
		return nil, nil, err
	}

	configManager := config.NewManager(projectRoot)
	cfg, err := configManager.Load()
	if err != nil {
		return nil, nil, err
	}
	return configManager, cfg, nil
}

// newRegistry builds the queue registry from the project configuration.
func newRegistry() (*registry.Registry, error) {
	configManager, cfg, err := loadProject()
	if err != nil {
		return nil, err
	}

	return registry.New(configManager.AgentsRootPath(cfg),
		queue.WithLogger(cliLogger()),
		queue.WithLockTimeout(time.Duration(cfg.Queue.LockTimeout)),
		queue.WithSettleDelay(time.Duration(cfg.Queue.SettleDelay)),
	), nil
}

// readPayload resolves the message payload from arguments, a file, or
// stdin. Non-JSON input is wrapped as a JSON string so records stay
// structured.
func readPayload(args []string, file string) (json.RawMessage, error) {
	var raw []byte

	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		raw = data
	case len(args) > 0:
		raw = []byte(args[0])
	default:
		stat, err := os.Stdin.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat stdin: %w", err)
		}
		// No payload at all is fine; only read stdin when piped
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return nil, nil
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		raw = data
	}

	if len(raw) == 0 {
		return nil, nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}
	wrapped, err := json.Marshal(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return json.RawMessage(wrapped), nil
}
