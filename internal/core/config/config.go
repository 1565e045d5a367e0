// Package config provides configuration management for cairn projects.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the project configuration stored in .cairn/config.yaml.
type Config struct {
	// AgentsRoot is the directory holding per-agent mailboxes,
	// relative to the project root unless absolute
	AgentsRoot string `yaml:"agentsRoot"`

	// Queue tunes the queue engine
	Queue QueueConfig `yaml:"queue"`
}

// QueueConfig holds queue engine tuning.
type QueueConfig struct {
	// LockTimeout bounds how long a consumer waits for the inbox lock
	LockTimeout Duration `yaml:"lockTimeout"`
	// SettleDelay is the pause between a change notification and the
	// read of the new record
	SettleDelay Duration `yaml:"settleDelay"`
}

// DefaultConfig returns the configuration written by init.
func DefaultConfig() *Config {
	return &Config{
		AgentsRoot: "agents",
		Queue: QueueConfig{
			LockTimeout: Duration(5 * time.Second),
			SettleDelay: Duration(100 * time.Millisecond),
		},
	}
}

// applyDefaults fills in zero values after a load.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.AgentsRoot == "" {
		cfg.AgentsRoot = def.AgentsRoot
	}
	if cfg.Queue.LockTimeout == 0 {
		cfg.Queue.LockTimeout = def.Queue.LockTimeout
	}
	if cfg.Queue.SettleDelay == 0 {
		cfg.Queue.SettleDelay = def.Queue.SettleDelay
	}
}

// Duration is a time.Duration that round-trips through yaml as a
// duration string ("5s") rather than integer nanoseconds.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
