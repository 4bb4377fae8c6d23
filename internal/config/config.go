// Package config handles synchronizer configuration loading and management.
package config

// Config holds all runtime settings.
type Config struct {
	Sync    SyncConfig    `yaml:"sync"`
	Shaders ShaderConfig  `yaml:"shaders"`
	Scene   SceneConfig   `yaml:"scene"`
	Logging LoggingConfig `yaml:"logging"`
}

// SyncConfig holds frame synchronization settings.
type SyncConfig struct {
	Tolerance      float32 `yaml:"tolerance"`         // Max per-element matrix change treated as no move
	FlipY          bool    `yaml:"flip_y"`            // Negate clip-space Y for the backend
	DepthZeroToOne bool    `yaml:"depth_zero_to_one"` // Remap clip depth to [0, 1]
}

// ShaderConfig holds shader binary locations.
type ShaderConfig struct {
	Dir   string   `yaml:"dir"`
	Slots []string `yaml:"slots"` // Slot names in slot order
	Watch bool     `yaml:"watch"` // Reload binaries when they change
}

// SceneConfig holds scene replay settings.
type SceneConfig struct {
	Script string `yaml:"script"`
	Frames int    `yaml:"frames"` // 0 plays the whole script
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Tolerance:      1e-5,
			FlipY:          true,
			DepthZeroToOne: true,
		},
		Shaders: ShaderConfig{
			Dir:   "shaders",
			Slots: []string{"ray_shadowVert", "ray_shadowFrag"},
			Watch: false,
		},
		Scene: SceneConfig{
			Script: "scenes/orbit.yaml",
			Frames: 0,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}
