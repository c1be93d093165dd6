package scenario

import (
	"errors"
	"time"

	"dcsim/internal/cluster"
)

// MutationType classifies a recorded state change.
type MutationType string

const (
	MutationGPUUpdate  MutationType = "gpu-update"
	MutationNodeHealth MutationType = "node-health"
	MutationXIDError   MutationType = "xid-error"
	MutationMIGMode    MutationType = "mig-mode"
	MutationSlurmState MutationType = "slurm-state"
)

// Mutation is one append-only entry of a context's audit trail.
type Mutation struct {
	Type      MutationType   `json:"type"`
	NodeID    string         `json:"nodeId"`
	GPUID     *int           `json:"gpuId,omitempty"`
	Data      map[string]any `json:"data"`
	Command   string         `json:"command,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (m Mutation) clone() Mutation {
	out := m
	if m.GPUID != nil {
		id := *m.GPUID
		out.GPUID = &id
	}
	if m.Data != nil {
		out.Data = make(map[string]any, len(m.Data))
		for k, v := range m.Data {
			out.Data[k] = v
		}
	}
	return out
}

// Outcome tells a caller what a mutating call did. Callers that follow the
// best-effort policy may ignore it.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoopReadonly
	OutcomeNoopMissingNode
	OutcomeNoopMissingGPU
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoopReadonly:
		return "noop-readonly"
	case OutcomeNoopMissingNode:
		return "noop-missing-node"
	case OutcomeNoopMissingGPU:
		return "noop-missing-gpu"
	default:
		return "unknown"
	}
}

// Applied reports whether the call changed state.
func (o Outcome) Applied() bool {
	return o == OutcomeApplied
}

// Checkpoint is the persistable form of a context.
type Checkpoint struct {
	ScenarioID string         `json:"scenarioId"`
	Initial    *cluster.State `json:"initial"`
	Current    *cluster.State `json:"current"`
	Mutations  []Mutation     `json:"mutations"`
	Readonly   bool           `json:"readonly"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Export is the diagnostic document produced by Context.Export.
type Export struct {
	ScenarioID string         `json:"scenarioId"`
	Cluster    *cluster.State `json:"cluster"`
	Mutations  []Mutation     `json:"mutations"`
	Runtime    Runtime        `json:"runtime"`
}

// Runtime describes the context at export time.
type Runtime struct {
	CreatedAt     time.Time `json:"createdAt"`
	ExportedAt    time.Time `json:"exportedAt"`
	UptimeSeconds float64   `json:"uptimeSeconds"`
	Readonly      bool      `json:"readonly"`
	MutationCount int       `json:"mutationCount"`
}

var (
	// ErrContextNotFound is returned when a context id is not registered.
	ErrContextNotFound = errors.New("scenario context not found")
	// ErrInvalidSnapshot is returned when a snapshot cannot seed a context.
	ErrInvalidSnapshot = errors.New("invalid cluster snapshot")
)
