// Package config provides configuration management for dcsim.
//
// Configuration is loaded from a single directory containing an optional
// config.yaml. The default directory is ~/.config/dcsim; it can be changed
// with the DCSIM_CONFIG environment variable or the --config-path flag.
//
// The same directory holds the shell history, scenario checkpoints (state/)
// and challenge definitions (challenges/) unless config.yaml points them
// elsewhere.
//
// # Example config.yaml
//
//	logLevel: info
//	cluster:
//	  preset: dgx-h100
//	  nodes: 8
//	sampler:
//	  enabled: true
//	  interval: 2s
//	persist:
//	  delay: 1s
//
// Validation problems are reported together as ValidationErrors.
package config
