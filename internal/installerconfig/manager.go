// Package installerconfig is a thin adaptation of the teacher's
// internal/config.Manager shape: it persists the handful of settings
// cmd/installer writes once, which the daemon reads at startup before
// environment variables are applied (internal/daemonconfig's precedence).
package installerconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the installer-written settings.
type Config struct {
	UpstreamBin       string `json:"upstream_bin,omitempty"`
	WorkspaceOverride string `json:"workspace_override,omitempty"`
	ToolLoopMode      string `json:"tool_loop_mode,omitempty"`
	ToolLoopMaxRepeat int    `json:"tool_loop_max_repeat,omitempty"`
}

// Manager handles loading and saving the installer config file.
type Manager struct {
	path string
}

// NewManager returns a Manager for path, or the default
// ~/.config/dodo-proxy/config.json location when path is empty.
func NewManager(path string) *Manager {
	if path == "" {
		path = defaultPath()
	}
	return &Manager{path: path}
}

func defaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".dodo-proxy", "config.json")
	}
	return filepath.Join(dir, "dodo-proxy", "config.json")
}

// GetConfigPath returns the absolute path to the config file.
func (m *Manager) GetConfigPath() string {
	return m.path
}

// Load reads the config from disk. If the file does not exist, it returns
// a zero Config and no error.
func (m *Manager) Load() (Config, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("installerconfig: read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("installerconfig: parse config json: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to disk with restricted permissions (0600).
func (m *Manager) Save(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("installerconfig: create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("installerconfig: marshal config: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("installerconfig: write config file: %w", err)
	}
	return nil
}

// Exists reports whether the config file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return !os.IsNotExist(err)
}
