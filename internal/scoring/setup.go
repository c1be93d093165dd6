package scoring

import (
	"fmt"

	"dcsim/internal/cluster"
	"dcsim/internal/scenario"
)

// BuildCluster returns the initial cluster for ch. Challenges without a
// setup, or without a preset, use defaultPreset.
func (ch Challenge) BuildCluster(defaultPreset string) (*cluster.State, error) {
	preset, nodes := defaultPreset, 0
	if ch.Setup != nil {
		if ch.Setup.Preset != "" {
			preset = ch.Setup.Preset
		}
		nodes = ch.Setup.Nodes
	}
	return cluster.NewPreset(preset, nodes)
}

// Prepare creates a scenario context for ch in mgr and injects its faults.
// The context id is the challenge id.
func (ch Challenge) Prepare(mgr *scenario.Manager, defaultPreset string) (*scenario.Context, error) {
	base, err := ch.BuildCluster(defaultPreset)
	if err != nil {
		return nil, fmt.Errorf("challenge %s: %w", ch.ID, err)
	}
	sc, err := mgr.CreateContext(ch.ID, base)
	if err != nil {
		return nil, fmt.Errorf("challenge %s: %w", ch.ID, err)
	}
	if ch.Setup == nil {
		return sc, nil
	}
	for i, f := range ch.Setup.Faults {
		outcome, err := sc.Inject(f)
		if err != nil {
			return nil, fmt.Errorf("challenge %s: fault %d: %w", ch.ID, i, err)
		}
		if !outcome.Applied() {
			return nil, fmt.Errorf("challenge %s: fault %d (%s on %s) not applied: %s", ch.ID, i, f.Type, f.Node, outcome)
		}
	}
	return sc, nil
}
