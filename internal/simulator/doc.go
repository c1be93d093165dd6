// Package simulator defines the contract shared by every simulated tool and
// the registry that routes a base command to the tool serving it.
//
// Simulators receive their state explicitly through a StateAccessor, so a
// tool can be exercised against any scenario context without global setup.
// Within a tool, --help and --version are answered by Base.Preflight before
// any subcommand routing happens.
package simulator
