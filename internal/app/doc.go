// Package app wires dcsim's components together.
//
// NewApplication loads the configuration (config.LoadConfig), initializes
// logging and builds Services: the scenario manager holding the default
// scenario, the simulator registry, the scoring engine, the challenge
// library, the optional persist store used for checkpoints, and the
// optional telemetry sampler.
//
// Application.Run starts the interactive shell. The sampler and the
// challenge-library watcher run for the lifetime of the shell and are
// stopped before Run returns. Application.Exec runs one line
// non-interactively.
//
// Grade is independent of Application: it replays a command script against
// any number of challenges concurrently, each in its own scenario manager,
// and returns one ChallengeResult per challenge.
package app
