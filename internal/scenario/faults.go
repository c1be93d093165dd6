package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"dcsim/internal/cluster"
)

// FaultType names a kind of injected fault.
type FaultType string

const (
	FaultXID         FaultType = "xid"
	FaultTemperature FaultType = "gpu-temperature"
	FaultECC         FaultType = "ecc"
	FaultNodeHealth  FaultType = "node-health"
	FaultSlurmState  FaultType = "slurm-state"
	FaultMIGMode     FaultType = "mig-mode"
)

// Origins recorded on mutations that were not typed by the user.
const (
	FaultCommand   = "fault-injection"
	SamplerCommand = "metrics-sampler"
)

// IsBackground reports whether a mutation came from fault injection or the
// metrics sampler rather than from a typed command.
func (m Mutation) IsBackground() bool {
	return m.Command == FaultCommand || m.Command == SamplerCommand
}

// Fault describes a state change applied before a challenge starts.
type Fault struct {
	Type   FaultType `yaml:"type" json:"type"`
	Node   string    `yaml:"node" json:"node"`
	GPU    *int      `yaml:"gpu,omitempty" json:"gpu,omitempty"`
	Code   int       `yaml:"code,omitempty" json:"code,omitempty"`
	Value  string    `yaml:"value,omitempty" json:"value,omitempty"`
	Reason string    `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Validate checks that f carries the fields its type needs.
func (f Fault) Validate() error {
	if f.Node == "" {
		return fmt.Errorf("fault %s: node is required", f.Type)
	}
	needsGPU := func() error {
		if f.GPU == nil {
			return fmt.Errorf("fault %s: gpu is required", f.Type)
		}
		return nil
	}

	switch f.Type {
	case FaultXID:
		if f.Code <= 0 {
			return fmt.Errorf("fault xid: code must be positive")
		}
		return needsGPU()
	case FaultTemperature, FaultECC:
		if _, err := strconv.ParseFloat(f.Value, 64); err != nil {
			return fmt.Errorf("fault %s: value %q is not a number", f.Type, f.Value)
		}
		return needsGPU()
	case FaultMIGMode:
		if _, err := strconv.ParseBool(f.Value); err != nil {
			return fmt.Errorf("fault mig-mode: value %q is not a boolean", f.Value)
		}
		return needsGPU()
	case FaultNodeHealth:
		if _, ok := cluster.ParseHealthStatus(f.Value); !ok {
			return fmt.Errorf("fault node-health: unknown health %q", f.Value)
		}
	case FaultSlurmState:
		if _, ok := cluster.ParseSlurmState(f.Value); !ok {
			return fmt.Errorf("fault slurm-state: unknown state %q", f.Value)
		}
	default:
		return fmt.Errorf("unknown fault type %q", f.Type)
	}
	return nil
}

// Inject applies f through the regular mutation API, so the fault appears
// in the mutation log like any other change.
func (c *Context) Inject(f Fault) (Outcome, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}

	switch f.Type {
	case FaultXID:
		return c.AddXIDError(f.Node, *f.GPU, f.Code, f.Reason, FaultCommand), nil
	case FaultTemperature:
		t, _ := strconv.ParseFloat(f.Value, 64)
		return c.UpdateGPU(f.Node, *f.GPU, cluster.GPUUpdate{Temperature: &t}, FaultCommand), nil
	case FaultECC:
		n, _ := strconv.ParseFloat(f.Value, 64)
		return c.UpdateGPU(f.Node, *f.GPU, cluster.GPUUpdate{
			ECCErrors: &cluster.ECCCounters{DoubleBit: int(n)},
			Health:    cluster.Ptr(cluster.HealthCritical),
		}, FaultCommand), nil
	case FaultMIGMode:
		on, _ := strconv.ParseBool(f.Value)
		return c.SetMIGMode(f.Node, *f.GPU, on, FaultCommand), nil
	case FaultNodeHealth:
		h, _ := cluster.ParseHealthStatus(f.Value)
		return c.UpdateNodeHealth(f.Node, h, FaultCommand), nil
	default:
		st, _ := cluster.ParseSlurmState(f.Value)
		return c.SetSlurmState(f.Node, st, strings.TrimSpace(f.Reason), FaultCommand), nil
	}
}
