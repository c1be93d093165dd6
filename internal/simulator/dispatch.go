package simulator

import (
	"fmt"
	"runtime/debug"
	"strconv"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/pkg/logging"
)

// Base carries the metadata of a tool and the flag handling every tool
// shares. Concrete simulators embed it.
type Base struct {
	Meta Metadata
}

// Metadata implements Simulator.
func (b Base) Metadata() Metadata {
	return b.Meta
}

// Preflight handles --help/-h and --version/-V. It reports whether the
// command was fully handled.
func (b Base) Preflight(cmd parser.ParsedCommand) (Result, bool) {
	if cmd.HasFlag("help", "h") {
		return OK(b.Meta.Usage), true
	}
	if cmd.HasFlag("version", "V") {
		return OK(fmt.Sprintf("%s version %s\n", cmd.BaseCommand, b.Meta.Version)), true
	}
	return Result{}, false
}

// UnknownSubcommand returns the usage failure for an unrecognised verb.
func (b Base) UnknownSubcommand(cmd parser.ParsedCommand, verb string) Result {
	return Fail(ExitUsage, "%s: unrecognized command '%s'\n\n%s", cmd.BaseCommand, verb, b.Meta.Usage)
}

// Run executes sim and converts a panic into a failed result.
func Run(sim Simulator, cmd parser.ParsedCommand, cmdCtx CommandContext, state StateAccessor) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Simulator", fmt.Errorf("panic: %v", r), "%s crashed on %q\n%s", sim.Metadata().Name, cmd.Raw, debug.Stack())
			res = Fail(ExitFailure, "%s: internal error\n", cmd.BaseCommand)
		}
	}()
	return sim.Execute(cmd, cmdCtx, state)
}

// ResolveNode returns the node a command targets: explicit when non-empty,
// else the context's current node, else the first node of the cluster.
func ResolveNode(state StateAccessor, cmdCtx CommandContext, explicit string) (cluster.Node, bool) {
	id := explicit
	if id == "" {
		id = cmdCtx.CurrentNode
	}
	if id != "" {
		return state.Node(id)
	}
	c := state.Cluster()
	if len(c.Nodes) == 0 {
		return cluster.Node{}, false
	}
	return c.Nodes[0], true
}

// ParseIndex parses a non-negative GPU index.
func ParseIndex(s string) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
