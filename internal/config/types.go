package config

import "time"

// Config is the top-level configuration structure for dcsim.
type Config struct {
	LogLevel     string        `yaml:"logLevel,omitempty"`     // debug, info, warn or error (default: warn)
	Prompt       string        `yaml:"prompt,omitempty"`       // Shell prompt template, %s is replaced by the current node
	HistoryFile  string        `yaml:"historyFile,omitempty"`  // Readline history (default: <config>/history)
	StateDir     string        `yaml:"stateDir,omitempty"`     // Scenario checkpoints (default: <config>/state)
	ChallengeDir string        `yaml:"challengeDir,omitempty"` // Challenge and exam YAML files (default: <config>/challenges)
	Cluster      ClusterConfig `yaml:"cluster"`
	Sampler      SamplerConfig `yaml:"sampler"`
	Persist      PersistConfig `yaml:"persist"`
}

// ClusterConfig selects the simulated cluster a new scenario starts from.
type ClusterConfig struct {
	Preset string `yaml:"preset,omitempty"` // dgx-a100, dgx-h100 or small
	Nodes  int    `yaml:"nodes,omitempty"`  // 0 uses the preset's default size
}

// SamplerConfig controls the background telemetry drift.
type SamplerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Seed     int64         `yaml:"seed,omitempty"`
}

// PersistConfig controls scenario checkpointing.
type PersistConfig struct {
	Enabled bool          `yaml:"enabled"`
	Delay   time.Duration `yaml:"delay,omitempty"` // Write-coalescing window
}
