package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcsim/internal/cluster"
)

func TestInjectFaults(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	gpu := 1

	faults := []Fault{
		{Type: FaultXID, Node: "node-01", GPU: &gpu, Code: 79},
		{Type: FaultTemperature, Node: "node-02", GPU: &gpu, Value: "91"},
		{Type: FaultSlurmState, Node: "node-01", Value: "drain", Reason: "gpu lost"},
		{Type: FaultNodeHealth, Node: "node-01", Value: "critical"},
		{Type: FaultMIGMode, Node: "node-02", GPU: &gpu, Value: "true"},
		{Type: FaultECC, Node: "node-02", GPU: &gpu, Value: "3"},
	}
	for _, f := range faults {
		out, err := ctx.Inject(f)
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, out, f.Type)
	}

	assert.Equal(t, len(faults), ctx.MutationCount())
	for _, m := range ctx.Mutations() {
		assert.Equal(t, FaultCommand, m.Command)
	}

	n, _ := ctx.Node("node-01")
	assert.Equal(t, cluster.SlurmDrain, n.SlurmState)
	assert.Equal(t, "gpu lost", n.SlurmReason)
	assert.Equal(t, cluster.HealthCritical, n.Health)
	assert.Equal(t, 79, n.GPUs[1].XIDErrors[0].Code)

	g, _ := ctx.GPU("node-02", 1)
	assert.Equal(t, 91.0, g.Temperature)
	assert.True(t, g.MIGEnabled)
	assert.Equal(t, 3, g.ECCErrors.DoubleBit)
}

func TestInjectRejectsMalformedFaults(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	gpu := 0

	bad := []Fault{
		{Type: FaultXID, Node: "node-01", GPU: &gpu},
		{Type: FaultXID, Node: "node-01", Code: 13},
		{Type: FaultTemperature, Node: "node-01", GPU: &gpu, Value: "hot"},
		{Type: FaultSlurmState, Node: "node-01", Value: "asleep"},
		{Type: "meteor", Node: "node-01"},
		{Type: FaultNodeHealth, Value: "ok"},
	}
	for _, f := range bad {
		_, err := ctx.Inject(f)
		assert.Error(t, err, f.Type)
	}
	assert.Equal(t, 0, ctx.MutationCount())

	out, err := ctx.Inject(Fault{Type: FaultXID, Node: "node-07", GPU: &gpu, Code: 13})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoopMissingNode, out)
}
