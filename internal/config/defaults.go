package config

import "time"

const (
	// DefaultPrompt is the shell prompt; %s is the current node.
	DefaultPrompt = "root@%s:~# "

	// DefaultPreset is the cluster preset used when none is configured.
	DefaultPreset = "dgx-a100"
)

// GetDefaultConfig returns the default configuration. Paths are left empty
// and resolved against the config directory by LoadConfig.
func GetDefaultConfig() Config {
	return Config{
		LogLevel: "warn",
		Prompt:   DefaultPrompt,
		Cluster: ClusterConfig{
			Preset: DefaultPreset,
		},
		Sampler: SamplerConfig{
			Enabled:  true,
			Interval: 5 * time.Second,
			Seed:     1,
		},
		Persist: PersistConfig{
			Enabled: true,
			Delay:   500 * time.Millisecond,
		},
	}
}
