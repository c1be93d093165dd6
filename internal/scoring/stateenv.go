package scoring

import (
	"dcsim/internal/cluster"
	"dcsim/internal/scenario"
)

// StateReader is the read side of a scenario context.
type StateReader interface {
	Cluster() *cluster.State
	Mutations() []scenario.Mutation
}

// StateEnv is the expression environment for state objectives. Lookups on
// unknown nodes or GPUs return zero values so an expression never errors
// on a typo; it simply stays false.
//
//	NodeState("node-02") == "drain" && NodeReason("node-02") != ""
//	GPUHealth("node-01", 3) == "OK" && XIDCount("node-01", 3) == 0
type StateEnv struct {
	Nodes         []string
	MutationCount int

	state     *cluster.State
	mutations []scenario.Mutation
}

// NewStateEnv snapshots r into an expression environment. A nil reader
// yields an empty environment.
func NewStateEnv(r StateReader) StateEnv {
	env := StateEnv{state: &cluster.State{}}
	if r == nil {
		return env
	}
	env.state = r.Cluster()
	for _, m := range r.Mutations() {
		if !m.IsBackground() {
			env.mutations = append(env.mutations, m)
		}
	}
	env.MutationCount = len(env.mutations)
	for _, n := range env.state.Nodes {
		env.Nodes = append(env.Nodes, n.ID)
	}
	return env
}

func (e StateEnv) node(id string) *cluster.Node {
	if e.state == nil {
		return nil
	}
	return e.state.Node(id)
}

func (e StateEnv) gpu(nodeID string, idx int) *cluster.GPU {
	n := e.node(nodeID)
	if n == nil {
		return nil
	}
	return n.GPU(idx)
}

// NodeHealth returns the health of a node, or "" when unknown.
func (e StateEnv) NodeHealth(id string) string {
	if n := e.node(id); n != nil {
		return string(n.Health)
	}
	return ""
}

// NodeState returns the Slurm state of a node.
func (e StateEnv) NodeState(id string) string {
	if n := e.node(id); n != nil {
		return string(n.SlurmState)
	}
	return ""
}

// NodeReason returns the Slurm reason of a node.
func (e StateEnv) NodeReason(id string) string {
	if n := e.node(id); n != nil {
		return n.SlurmReason
	}
	return ""
}

func (e StateEnv) GPUHealth(nodeID string, idx int) string {
	if g := e.gpu(nodeID, idx); g != nil {
		return string(g.Health)
	}
	return ""
}

func (e StateEnv) GPUTemperature(nodeID string, idx int) float64 {
	if g := e.gpu(nodeID, idx); g != nil {
		return g.Temperature
	}
	return 0
}

func (e StateEnv) MIGEnabled(nodeID string, idx int) bool {
	if g := e.gpu(nodeID, idx); g != nil {
		return g.MIGEnabled
	}
	return false
}

func (e StateEnv) XIDCount(nodeID string, idx int) int {
	if g := e.gpu(nodeID, idx); g != nil {
		return len(g.XIDErrors)
	}
	return 0
}

// Mutated reports whether a typed command produced a mutation of the given
// kind, e.g. Mutated("slurm-state").
func (e StateEnv) Mutated(kind string) bool {
	for _, m := range e.mutations {
		if string(m.Type) == kind {
			return true
		}
	}
	return false
}
