// Package logging provides the structured logging used throughout dcsim.
//
// It is a thin layer over log/slog that tags every record with a subsystem
// name and formats messages printf-style.
//
// # Log Levels
//   - **Debug**: silent no-ops, sampler ticks, filter decisions
//   - **Info**: scenario lifecycle and challenge completion
//   - **Warn**: recoverable problems such as unreadable challenge files
//   - **Error**: failures that abort an operation
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Scenario", "Created context %s", id)
//	logging.Debug("Sampler", "Tick updated %d GPUs", n)
//	logging.Error("Persist", err, "Failed to write %s", key)
//
// # Subsystems
//
//   - **Bootstrap**: application wiring
//   - **Config**: configuration loading and validation
//   - **Scenario**: context lifecycle and state mutations
//   - **Scoring**: challenge progress and grading
//   - **Terminal**: command dispatch and the interactive shell
//   - **Sampler**: background telemetry drift
//   - **Persist**: debounced checkpoint storage
//
// Logging before InitForCLI is called is silently discarded.
package logging
