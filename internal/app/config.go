package app

import (
	"dcsim/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath is the directory holding config.yaml. Empty selects
	// config.GetDefaultConfigPath.
	ConfigPath string

	// LogLevel overrides the level from the config file when set
	LogLevel string

	// Silent discards all log output
	Silent bool

	// Settings is filled in by NewApplication. Pre-populating it skips
	// loading from disk.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(configPath, logLevel string) *Config {
	return &Config{
		ConfigPath: configPath,
		LogLevel:   logLevel,
	}
}
