package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dcsim/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/dcsim"
	configFileName = "config.yaml"

	// EnvConfigPath overrides the default configuration directory.
	EnvConfigPath = "DCSIM_CONFIG"
)

// osUserHomeDir is swapped out in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns $DCSIM_CONFIG, or ~/.config/dcsim.
func GetDefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from a single specified directory.
// The directory may contain config.yaml; missing files yield the defaults.
// Relative paths in the file are resolved against configPath.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig() // Start with default config

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	config.resolvePaths(configPath)
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config in %s: %w", configFilePath, err)
	}
	return config, nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p *string, def string) {
		if *p == "" {
			*p = def
		}
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	resolve(&c.HistoryFile, "history")
	resolve(&c.StateDir, "state")
	resolve(&c.ChallengeDir, "challenges")
}
