package simulator

import (
	"fmt"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/internal/scenario"
)

// Exit codes shared across tools.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 127
)

// Simulator is implemented by every simulated tool family.
type Simulator interface {
	// Execute runs one parsed command against the supplied state. Expected
	// failures are reported through Result.ExitCode, never by panicking.
	Execute(cmd parser.ParsedCommand, cmdCtx CommandContext, state StateAccessor) Result

	// Metadata describes the simulator and the command names it serves
	Metadata() Metadata
}

// Metadata describes a simulator.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	// Commands are the base command names routed to this simulator
	Commands []string `json:"commands"`
	// Usage is printed for --help and after unknown subcommands
	Usage string `json:"usage,omitempty"`
}

// StateAccessor is the cluster state a simulator may read and change.
// *scenario.Context satisfies it.
type StateAccessor interface {
	Cluster() *cluster.State
	Node(id string) (cluster.Node, bool)
	GPU(nodeID string, gpuID int) (cluster.GPU, bool)

	UpdateGPU(nodeID string, gpuID int, update cluster.GPUUpdate, command ...string) scenario.Outcome
	UpdateNodeHealth(nodeID string, health cluster.HealthStatus, command ...string) scenario.Outcome
	AddXIDError(nodeID string, gpuID int, code int, message string, command ...string) scenario.Outcome
	SetMIGMode(nodeID string, gpuID int, enabled bool, command ...string) scenario.Outcome
	SetSlurmState(nodeID string, state cluster.SlurmState, reason string, command ...string) scenario.Outcome
}

var _ StateAccessor = (*scenario.Context)(nil)

// CommandContext is the caller-owned environment of one command.
type CommandContext struct {
	CurrentNode string
	CurrentPath string
	Environment map[string]string
	History     []string
}

// Env returns an environment variable or "".
func (c CommandContext) Env(key string) string {
	return c.Environment[key]
}

// Result is the outcome of one command.
type Result struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// Success reports whether the exit code is zero.
func (r Result) Success() bool {
	return r.ExitCode == ExitOK
}

// OK returns a successful result.
func OK(output string) Result {
	return Result{Output: output}
}

// Fail returns a result with the given exit code and formatted output.
func Fail(code int, format string, args ...interface{}) Result {
	return Result{Output: fmt.Sprintf(format, args...), ExitCode: code}
}
