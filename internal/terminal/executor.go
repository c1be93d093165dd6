package terminal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"dcsim/internal/parser"
	"dcsim/internal/persist"
	"dcsim/internal/scenario"
	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
	"dcsim/pkg/logging"
)

const subsystem = "Terminal"

// DefaultPath is the working directory of a fresh session.
const DefaultPath = "/root"

// Options wires an Executor to its collaborators. Registry and Manager are
// required; the rest are optional.
type Options struct {
	Registry *simulator.Registry
	Manager  *scenario.Manager
	// Engine receives every command for grading
	Engine *scoring.Engine
	// Store receives a checkpoint of the active scenario whenever a
	// command changed it
	Store *persist.Store
	// OnProgress is called with the objectives a command completed
	OnProgress func(completed []string)
	// Environment seeds the session's variables
	Environment map[string]string
}

// Executor runs terminal lines against the active scenario. It owns the
// session state a real shell would: working directory, environment,
// history and the node the user is logged into.
type Executor struct {
	opts Options

	mu       sync.Mutex
	homeNode string
	cmdCtx   simulator.CommandContext
	exited   bool
	// mutation counts at the last checkpoint, per scenario
	checkpointed map[string]int
}

// NewExecutor creates an executor logged into the first node of the
// active scenario.
func NewExecutor(opts Options) *Executor {
	env := map[string]string{"HOME": DefaultPath, "USER": "root", "SHELL": "/bin/bash"}
	for k, v := range opts.Environment {
		env[k] = v
	}
	e := &Executor{
		opts: opts,
		cmdCtx: simulator.CommandContext{
			CurrentPath: DefaultPath,
			Environment: env,
		},
		checkpointed: make(map[string]int),
	}
	if sc := opts.Manager.ActiveContext(); sc != nil {
		if state := sc.Cluster(); len(state.Nodes) > 0 {
			e.homeNode = state.Nodes[0].ID
			e.cmdCtx.CurrentNode = e.homeNode
		}
	}
	return e
}

// Run executes one input line and returns what the terminal should print.
func (e *Executor) Run(line string) simulator.Result {
	line = strings.TrimSpace(line)
	if line == "" {
		return simulator.OK("")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cmdCtx.History = append(e.cmdCtx.History, line)
	head, stages := parser.SplitPipeline(line)
	cmd := parser.Parse(head)

	res, graded := e.dispatch(cmd)
	if len(stages) > 0 && res.ExitCode == simulator.ExitOK {
		res = applyPipeline(res.Output, stages)
	}

	logging.Debug(subsystem, "%q exited %d", line, res.ExitCode)
	if graded && e.opts.Engine != nil {
		if done := e.opts.Engine.Observe(line, res.Output); len(done) > 0 && e.opts.OnProgress != nil {
			e.opts.OnProgress(done)
		}
	}
	e.checkpoint()
	return res
}

// dispatch runs builtins and simulators. graded is false for the
// challenge builtins, which are not part of the user's answer.
func (e *Executor) dispatch(cmd parser.ParsedCommand) (res simulator.Result, graded bool) {
	if cmd.BaseCommand == "" {
		toks := parser.Tokenize(cmd.Raw)
		if len(toks) == 0 {
			return simulator.Fail(simulator.ExitUsage, "syntax error near unexpected token `|'\n"), false
		}
		return notFound(toks[0]), true
	}
	if b, ok := builtins[cmd.BaseCommand]; ok {
		return b.run(e, cmd), b.graded
	}

	sc := e.opts.Manager.ActiveContext()
	if sc == nil {
		return simulator.Fail(simulator.ExitFailure, "no active scenario\n"), true
	}
	sim, ok := e.opts.Registry.Get(cmd.BaseCommand)
	if !ok {
		return notFound(cmd.BaseCommand), true
	}
	return simulator.Run(sim, cmd, e.snapshotContext(), sc), true
}

// snapshotContext copies the command context so simulators cannot alias
// session state.
func (e *Executor) snapshotContext() simulator.CommandContext {
	c := e.cmdCtx
	c.Environment = make(map[string]string, len(e.cmdCtx.Environment))
	for k, v := range e.cmdCtx.Environment {
		c.Environment[k] = v
	}
	c.History = append([]string(nil), e.cmdCtx.History...)
	return c
}

// CommandContext returns a copy of the current session state.
func (e *Executor) CommandContext() simulator.CommandContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotContext()
}

// Remote reports whether the session is logged into a node other than the
// one it started on.
func (e *Executor) Remote() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmdCtx.CurrentNode != e.homeNode
}

// Exited reports whether exit was run at the home node.
func (e *Executor) Exited() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exited
}

// Prompt renders format with the current node substituted for %s.
func (e *Executor) Prompt(format string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !strings.Contains(format, "%s") {
		return format
	}
	node := e.cmdCtx.CurrentNode
	if node == "" {
		node = "localhost"
	}
	return fmt.Sprintf(format, node)
}

// Completions returns the command words offered for tab completion.
func (e *Executor) Completions() []string {
	words := e.opts.Registry.AllCompletions()
	for name := range builtins {
		words = append(words, name)
	}
	return words
}

// checkpoint saves the active scenario when its mutation count moved since
// the last checkpoint. Untouched scenarios are never written.
func (e *Executor) checkpoint() {
	if e.opts.Store == nil {
		return
	}
	sc := e.opts.Manager.ActiveContext()
	if sc == nil {
		return
	}
	count := sc.MutationCount()
	if e.checkpointed[sc.ID()] == count {
		return
	}
	data, err := json.Marshal(sc.Checkpoint())
	if err != nil {
		logging.Error(subsystem, err, "Failed to encode checkpoint of %s", sc.ID())
		return
	}
	if err := e.opts.Store.Set(CheckpointKey(sc.ID()), data); err != nil {
		logging.Error(subsystem, err, "Failed to checkpoint %s", sc.ID())
		return
	}
	e.checkpointed[sc.ID()] = count
}

// CheckpointKey is the persist key of a scenario's checkpoint.
func CheckpointKey(scenarioID string) string {
	return "scenario-" + scenarioID
}

// LoadCheckpoint restores a scenario saved by a previous session. It
// reports false when there is no checkpoint for id.
func LoadCheckpoint(store *persist.Store, mgr *scenario.Manager, id string) (*scenario.Context, bool, error) {
	data, ok, err := store.Get(CheckpointKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var cp scenario.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false, fmt.Errorf("failed to decode checkpoint %s: %w", id, err)
	}
	sc, err := mgr.Restore(cp)
	if err != nil {
		return nil, false, fmt.Errorf("failed to restore checkpoint %s: %w", id, err)
	}
	return sc, true, nil
}
