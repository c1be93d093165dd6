package scenario

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sigs.k8s.io/yaml"

	"dcsim/internal/clock"
	"dcsim/internal/cluster"
	"dcsim/pkg/logging"
)

// Context owns a private copy of cluster state and the log of every change
// made to it. It is safe for concurrent use.
type Context struct {
	mu        sync.RWMutex
	id        string
	initial   *cluster.State
	state     *cluster.State
	mutations []Mutation
	readonly  bool
	createdAt time.Time
	clock     clock.Clock
}

func newContext(id string, base *cluster.State, clk clock.Clock) *Context {
	return &Context{
		id:        id,
		initial:   base.DeepCopy(),
		state:     base.DeepCopy(),
		mutations: []Mutation{},
		createdAt: clk.Now(),
		clock:     clk,
	}
}

// ID returns the scenario id.
func (c *Context) ID() string { return c.id }

// CreatedAt returns when the context was created.
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// SetReadonly toggles whether mutations are accepted.
func (c *Context) SetReadonly(readonly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readonly = readonly
}

// IsReadonly reports whether mutations are currently rejected.
func (c *Context) IsReadonly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readonly
}

// Cluster returns a copy of the current state.
func (c *Context) Cluster() *cluster.State {
	return c.Snapshot()
}

// Snapshot returns a deep copy of the current state that callers may keep.
func (c *Context) Snapshot() *cluster.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.DeepCopy()
}

// Node returns a copy of the node with the given id or hostname.
func (c *Context) Node(id string) (cluster.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.state.Node(id)
	if n == nil {
		return cluster.Node{}, false
	}
	return n.DeepCopy(), true
}

// GPU returns a copy of one GPU.
func (c *Context) GPU(nodeID string, gpuID int) (cluster.GPU, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.state.Node(nodeID)
	if n == nil {
		return cluster.GPU{}, false
	}
	g := n.GPU(gpuID)
	if g == nil {
		return cluster.GPU{}, false
	}
	return g.DeepCopy(), true
}

// Mutations returns a fresh copy of the mutation log.
func (c *Context) Mutations() []Mutation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Mutation, len(c.mutations))
	for i, m := range c.mutations {
		out[i] = m.clone()
	}
	return out
}

// MutationCount returns the length of the mutation log.
func (c *Context) MutationCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mutations)
}

// UpdateGPU applies a partial update to one GPU.
func (c *Context) UpdateGPU(nodeID string, gpuID int, update cluster.GPUUpdate, command ...string) Outcome {
	return c.mutateGPU(MutationGPUUpdate, nodeID, gpuID, command, func(g *cluster.GPU) map[string]any {
		return update.Apply(g)
	})
}

// AddXIDError appends an XID error to a GPU and degrades its health to the
// severity the code implies.
func (c *Context) AddXIDError(nodeID string, gpuID int, code int, message string, command ...string) Outcome {
	if message == "" {
		message = cluster.XIDDescription(code)
	}
	return c.mutateGPU(MutationXIDError, nodeID, gpuID, command, func(g *cluster.GPU) map[string]any {
		g.XIDErrors = append(g.XIDErrors, cluster.XIDError{Code: code, Message: message, Timestamp: c.clock.Now()})
		data := map[string]any{"code": code, "message": message}
		if sev := cluster.XIDSeverity(code); worse(sev, g.Health) {
			g.Health = sev
			data["health"] = string(sev)
		}
		return data
	})
}

// SetMIGMode enables or disables MIG on one GPU.
func (c *Context) SetMIGMode(nodeID string, gpuID int, enabled bool, command ...string) Outcome {
	return c.mutateGPU(MutationMIGMode, nodeID, gpuID, command, func(g *cluster.GPU) map[string]any {
		g.MIGEnabled = enabled
		return map[string]any{"enabled": enabled}
	})
}

// UpdateNodeHealth sets the health of a node.
func (c *Context) UpdateNodeHealth(nodeID string, health cluster.HealthStatus, command ...string) Outcome {
	return c.mutateNode(MutationNodeHealth, nodeID, command, func(n *cluster.Node) map[string]any {
		n.Health = health
		return map[string]any{"health": string(health)}
	})
}

// SetSlurmState sets the scheduler state of a node. An empty reason clears
// any previous reason.
func (c *Context) SetSlurmState(nodeID string, state cluster.SlurmState, reason string, command ...string) Outcome {
	return c.mutateNode(MutationSlurmState, nodeID, command, func(n *cluster.Node) map[string]any {
		n.SlurmState = state
		n.SlurmReason = reason
		data := map[string]any{"state": string(state)}
		if reason != "" {
			data["reason"] = reason
		}
		return data
	})
}

// Reset restores the initial snapshot and clears the mutation log.
func (c *Context) Reset() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readonly {
		logging.Debug("Scenario", "Reset of %s ignored: context is readonly", c.id)
		return OutcomeNoopReadonly
	}
	c.state = c.initial.DeepCopy()
	c.mutations = []Mutation{}
	logging.Debug("Scenario", "Reset context %s", c.id)
	return OutcomeApplied
}

func (c *Context) mutateNode(kind MutationType, nodeID string, command []string, apply func(*cluster.Node) map[string]any) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readonly {
		return c.noop(kind, nodeID, OutcomeNoopReadonly)
	}
	n := c.state.Node(nodeID)
	if n == nil {
		return c.noop(kind, nodeID, OutcomeNoopMissingNode)
	}
	data := apply(n)
	c.record(Mutation{Type: kind, NodeID: n.ID, Data: data, Command: firstOf(command)})
	return OutcomeApplied
}

func (c *Context) mutateGPU(kind MutationType, nodeID string, gpuID int, command []string, apply func(*cluster.GPU) map[string]any) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readonly {
		return c.noop(kind, nodeID, OutcomeNoopReadonly)
	}
	n := c.state.Node(nodeID)
	if n == nil {
		return c.noop(kind, nodeID, OutcomeNoopMissingNode)
	}
	g := n.GPU(gpuID)
	if g == nil {
		return c.noop(kind, nodeID, OutcomeNoopMissingGPU)
	}
	data := apply(g)
	id := gpuID
	c.record(Mutation{Type: kind, NodeID: n.ID, GPUID: &id, Data: data, Command: firstOf(command)})
	return OutcomeApplied
}

// record must be called with mu held.
func (c *Context) record(m Mutation) {
	m.Timestamp = c.clock.Now()
	c.mutations = append(c.mutations, m)
}

func (c *Context) noop(kind MutationType, nodeID string, o Outcome) Outcome {
	logging.Debug("Scenario", "%s on %s in %s ignored: %s", kind, nodeID, c.id, o)
	return o
}

// Export serializes the scenario id, current cluster, mutation log and
// runtime information as indented JSON.
func (c *Context) Export() ([]byte, error) {
	data, err := json.MarshalIndent(c.exportDoc(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export scenario %s: %w", c.id, err)
	}
	return data, nil
}

// ExportYAML is Export rendered as YAML using the same field names.
func (c *Context) ExportYAML() ([]byte, error) {
	data, err := yaml.Marshal(c.exportDoc())
	if err != nil {
		return nil, fmt.Errorf("failed to export scenario %s: %w", c.id, err)
	}
	return data, nil
}

func (c *Context) exportDoc() Export {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	muts := make([]Mutation, len(c.mutations))
	for i, m := range c.mutations {
		muts[i] = m.clone()
	}
	return Export{
		ScenarioID: c.id,
		Cluster:    c.state.DeepCopy(),
		Mutations:  muts,
		Runtime: Runtime{
			CreatedAt:     c.createdAt,
			ExportedAt:    now,
			UptimeSeconds: now.Sub(c.createdAt).Seconds(),
			Readonly:      c.readonly,
			MutationCount: len(c.mutations),
		},
	}
}

// Checkpoint captures everything needed to rebuild the context.
func (c *Context) Checkpoint() Checkpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	muts := make([]Mutation, len(c.mutations))
	for i, m := range c.mutations {
		muts[i] = m.clone()
	}
	return Checkpoint{
		ScenarioID: c.id,
		Initial:    c.initial.DeepCopy(),
		Current:    c.state.DeepCopy(),
		Mutations:  muts,
		Readonly:   c.readonly,
		CreatedAt:  c.createdAt,
	}
}

var healthRank = map[cluster.HealthStatus]int{
	cluster.HealthOK:       0,
	cluster.HealthUnknown:  1,
	cluster.HealthWarning:  2,
	cluster.HealthCritical: 3,
}

func worse(a, b cluster.HealthStatus) bool {
	return healthRank[a] > healthRank[b]
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
