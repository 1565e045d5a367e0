package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// CairnDir is the directory name for cairn metadata
	CairnDir = ".cairn"
	// ConfigFile is the filename for the cairn configuration
	ConfigFile = "config.yaml"
)

// Manager handles cairn configuration for one project.
type Manager struct {
	projectRoot string
	configPath  string
}

// NewManager creates a configuration manager rooted at projectRoot.
func NewManager(projectRoot string) *Manager {
	return &Manager{
		projectRoot: projectRoot,
		configPath:  filepath.Join(projectRoot, CairnDir, ConfigFile),
	}
}

// Load reads the configuration from disk and applies defaults.
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cairn not initialized. Run 'cairn init' first")
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the configuration to disk, creating the .cairn
// directory if needed.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// IsInitialized checks whether cairn has been initialized here.
func (m *Manager) IsInitialized() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

// GetProjectRoot returns the project root directory.
func (m *Manager) GetProjectRoot() string {
	return m.projectRoot
}

// GetConfigPath returns the configuration file path.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// AgentsRootPath resolves the agents root against the project root.
func (m *Manager) AgentsRootPath(cfg *Config) string {
	if filepath.IsAbs(cfg.AgentsRoot) {
		return cfg.AgentsRoot
	}
	return filepath.Join(m.projectRoot, cfg.AgentsRoot)
}

// FindProjectRoot searches upward from the working directory for a
// .cairn directory.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, CairnDir, ConfigFile)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("not in a cairn project (no %s directory found)", CairnDir)
}
