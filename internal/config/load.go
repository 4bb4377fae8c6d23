package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the synchronizer cannot run with.
func (c *Config) Validate() error {
	if c.Sync.Tolerance < 0 {
		return fmt.Errorf("sync.tolerance must not be negative, got %g", c.Sync.Tolerance)
	}
	if c.Scene.Frames < 0 {
		return fmt.Errorf("scene.frames must not be negative, got %d", c.Scene.Frames)
	}
	seen := make(map[string]bool, len(c.Shaders.Slots))
	for _, s := range c.Shaders.Slots {
		if s == "" || seen[s] {
			return fmt.Errorf("shaders.slots: empty or duplicate slot %q", s)
		}
		seen[s] = true
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "rtsync")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "rtsync")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "rtsync")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "rtsync")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
