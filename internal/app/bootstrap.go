package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"dcsim/internal/config"
	"dcsim/internal/simulator"
	"dcsim/pkg/logging"
)

// Application represents the main application structure that bootstraps
// and runs dcsim. It owns the loaded configuration and the services built
// from it.
//
// Example usage:
//
//	app, err := app.NewApplication(app.NewConfig("", "debug"))
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer app.Close()
//	return app.Run(ctx, "")
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and builds the
// services. Logging goes to stderr so simulated output on stdout stays
// clean.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Settings == nil {
		settings, err := loadSettings(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Settings = &settings
	}

	levelName := cfg.Settings.LogLevel
	if cfg.LogLevel != "" {
		levelName = cfg.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(level, logOutput)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func loadSettings(configPath string) (config.Config, error) {
	if configPath == "" {
		p, err := config.GetDefaultConfigPath()
		if err != nil {
			return config.Config{}, err
		}
		configPath = p
	}
	settings, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	return settings, nil
}

// Services exposes the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Settings returns the loaded configuration.
func (a *Application) Settings() config.Config {
	return *a.config.Settings
}

// Run starts the interactive shell. A non-empty challengeID starts that
// challenge first.
func (a *Application) Run(ctx context.Context, challengeID string) error {
	return runShell(ctx, a.config, a.services, challengeID)
}

// Exec runs a single command line against the default scenario.
func (a *Application) Exec(line string) simulator.Result {
	return runOnce(a.services, line)
}

// Close stops background work and flushes pending checkpoints.
func (a *Application) Close() error {
	return a.services.Close()
}
