package scenario

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"dcsim/internal/clock"
	"dcsim/internal/cluster"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestContext(t *testing.T) (*Context, *cluster.State, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(epoch)
	base := cluster.MustPreset("small", 2)
	ctx, err := NewManager(clk).CreateContext("test", base)
	require.NoError(t, err)
	return ctx, base, clk
}

func gpuTemp(t *testing.T, ctx *Context, node string, id int) float64 {
	t.Helper()
	g, ok := ctx.GPU(node, id)
	require.True(t, ok)
	return g.Temperature
}

func TestIsolationBetweenContexts(t *testing.T) {
	base := cluster.MustPreset("small", 2)
	mgr := NewManager(clock.NewMock(epoch))

	a, err := mgr.CreateContext("a", base)
	require.NoError(t, err)
	b, err := mgr.CreateContext("b", base)
	require.NoError(t, err)

	out := a.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(90.0)})
	assert.Equal(t, OutcomeApplied, out)

	assert.Equal(t, 90.0, gpuTemp(t, a, "node-01", 0))
	assert.Equal(t, 35.0, gpuTemp(t, b, "node-01", 0))
	assert.Equal(t, 35.0, base.Nodes[0].GPUs[0].Temperature)

	a.AddXIDError("node-01", 1, 79, "")
	assert.Empty(t, base.Nodes[0].GPUs[1].XIDErrors)
	gb, _ := b.GPU("node-01", 1)
	assert.Empty(t, gb.XIDErrors)
}

func TestSnapshotDoesNotAliasFutureMutations(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	snap := ctx.Snapshot()
	ctx.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(77.0)})
	assert.Equal(t, 35.0, snap.Nodes[0].GPUs[0].Temperature)

	snap.Nodes[0].GPUs[0].Temperature = 1
	assert.Equal(t, 77.0, gpuTemp(t, ctx, "node-01", 0))
}

func TestMissingTargetsAreNoops(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	update := cluster.GPUUpdate{Temperature: cluster.Ptr(99.0)}

	assert.Equal(t, OutcomeNoopMissingNode, ctx.UpdateGPU("missing-node", 0, update))
	assert.Equal(t, OutcomeNoopMissingGPU, ctx.UpdateGPU("node-01", 99, update))
	assert.Equal(t, OutcomeNoopMissingNode, ctx.UpdateNodeHealth("nope", cluster.HealthCritical))
	assert.Equal(t, OutcomeNoopMissingGPU, ctx.SetMIGMode("node-01", 7, true))
	assert.Equal(t, OutcomeNoopMissingNode, ctx.SetSlurmState("ghost", cluster.SlurmDrain, "x"))
	assert.Equal(t, OutcomeNoopMissingGPU, ctx.AddXIDError("node-02", -1, 48, ""))

	assert.Equal(t, 0, ctx.MutationCount())
	assert.Equal(t, 35.0, gpuTemp(t, ctx, "node-01", 0))
}

func TestReadonlyEnforcement(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	ctx.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(50.0)})
	require.Equal(t, 1, ctx.MutationCount())

	ctx.SetReadonly(true)
	ctx.SetReadonly(true)
	assert.True(t, ctx.IsReadonly())

	before := ctx.Snapshot()
	assert.Equal(t, OutcomeNoopReadonly, ctx.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(90.0)}))
	assert.Equal(t, OutcomeNoopReadonly, ctx.UpdateNodeHealth("node-01", cluster.HealthCritical))
	assert.Equal(t, OutcomeNoopReadonly, ctx.AddXIDError("node-01", 0, 79, ""))
	assert.Equal(t, OutcomeNoopReadonly, ctx.SetMIGMode("node-01", 0, true))
	assert.Equal(t, OutcomeNoopReadonly, ctx.SetSlurmState("node-01", cluster.SlurmDown, ""))
	assert.Equal(t, OutcomeNoopReadonly, ctx.Reset())

	assert.Equal(t, 1, ctx.MutationCount())
	if diff := cmp.Diff(before, ctx.Snapshot()); diff != "" {
		t.Fatalf("readonly context changed (-before +after):\n%s", diff)
	}

	ctx.SetReadonly(false)
	assert.Equal(t, OutcomeApplied, ctx.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(90.0)}))
	assert.Equal(t, 2, ctx.MutationCount())
}

func TestMutationBookkeeping(t *testing.T) {
	ctx, _, clk := newTestContext(t)

	ctx.UpdateGPU("node-01", 1, cluster.GPUUpdate{Utilization: cluster.Ptr(88.0)}, "stress-test")
	clk.Advance(time.Second)
	ctx.UpdateNodeHealth("node-02", cluster.HealthWarning)
	clk.Advance(time.Second)
	ctx.SetSlurmState("node-02", cluster.SlurmDrain, "bad gpu", "scontrol update nodename=node-02 state=drain")

	muts := ctx.Mutations()
	require.Len(t, muts, ctx.MutationCount())
	require.Len(t, muts, 3)

	assert.Equal(t, MutationGPUUpdate, muts[0].Type)
	assert.Equal(t, "node-01", muts[0].NodeID)
	require.NotNil(t, muts[0].GPUID)
	assert.Equal(t, 1, *muts[0].GPUID)
	assert.Equal(t, map[string]any{"utilization": 88.0}, muts[0].Data)
	assert.Equal(t, "stress-test", muts[0].Command)
	assert.Equal(t, epoch, muts[0].Timestamp)

	assert.Equal(t, MutationNodeHealth, muts[1].Type)
	assert.Nil(t, muts[1].GPUID)
	assert.Empty(t, muts[1].Command)

	assert.Equal(t, MutationSlurmState, muts[2].Type)
	assert.Equal(t, map[string]any{"state": "drain", "reason": "bad gpu"}, muts[2].Data)
	assert.Equal(t, epoch.Add(2*time.Second), muts[2].Timestamp)

	// callers must not be able to reach internal state through the copy
	muts[0].Data["utilization"] = 1.0
	*muts[0].GPUID = 42
	muts[0] = Mutation{Type: "bogus"}
	fresh := ctx.Mutations()
	assert.Equal(t, 88.0, fresh[0].Data["utilization"])
	assert.Equal(t, 1, *fresh[0].GPUID)
	assert.Equal(t, MutationGPUUpdate, fresh[0].Type)
	assert.Len(t, fresh, 3)
}

func TestAddXIDErrorDegradesHealth(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	ctx.AddXIDError("node-01", 0, 13, "")
	g, _ := ctx.GPU("node-01", 0)
	assert.Equal(t, cluster.HealthWarning, g.Health)
	require.Len(t, g.XIDErrors, 1)
	assert.Equal(t, "Graphics Engine Exception", g.XIDErrors[0].Message)
	assert.Equal(t, epoch, g.XIDErrors[0].Timestamp)

	ctx.AddXIDError("node-01", 0, 79, "fell off")
	ctx.AddXIDError("node-01", 0, 13, "")
	g, _ = ctx.GPU("node-01", 0)
	assert.Equal(t, cluster.HealthCritical, g.Health)
	assert.Len(t, g.XIDErrors, 3)

	muts := ctx.Mutations()
	assert.Equal(t, map[string]any{"code": 79, "message": "fell off", "health": "Critical"}, muts[1].Data)
	assert.NotContains(t, muts[2].Data, "health")
}

func TestSetMIGMode(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	ctx.SetMIGMode("node-02", 1, true, "nvidia-smi -i 1 -mig 1")
	g, _ := ctx.GPU("node-02", 1)
	assert.True(t, g.MIGEnabled)
	assert.Equal(t, MutationMIGMode, ctx.Mutations()[0].Type)
}

func TestReset(t *testing.T) {
	ctx, base, _ := newTestContext(t)

	ctx.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(90.0)})
	ctx.SetSlurmState("node-01", cluster.SlurmDown, "")
	require.Equal(t, 2, ctx.MutationCount())

	assert.Equal(t, OutcomeApplied, ctx.Reset())
	assert.Equal(t, 0, ctx.MutationCount())
	if diff := cmp.Diff(base, ctx.Snapshot()); diff != "" {
		t.Fatalf("reset did not restore initial snapshot (-want +got):\n%s", diff)
	}

	// the initial snapshot survives mutations made after a reset
	ctx.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(60.0)})
	ctx.Reset()
	assert.Equal(t, 35.0, gpuTemp(t, ctx, "node-01", 0))
}

func TestExport(t *testing.T) {
	ctx, _, clk := newTestContext(t)
	ctx.SetMIGMode("node-01", 0, true, "nvidia-smi -i 0 -mig 1")
	clk.Advance(90 * time.Second)

	data, err := ctx.Export()
	require.NoError(t, err)

	var doc Export
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "test", doc.ScenarioID)
	assert.Len(t, doc.Cluster.Nodes, 2)
	assert.True(t, doc.Cluster.Nodes[0].GPUs[0].MIGEnabled)
	require.Len(t, doc.Mutations, 1)
	assert.Equal(t, "nvidia-smi -i 0 -mig 1", doc.Mutations[0].Command)
	assert.Equal(t, 90.0, doc.Runtime.UptimeSeconds)
	assert.Equal(t, 1, doc.Runtime.MutationCount)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "scenarioId")
	assert.Contains(t, raw, "cluster")
	assert.Contains(t, raw, "mutations")
	assert.Contains(t, raw, "runtime")
}

func TestExportYAML(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	ctx.UpdateNodeHealth("node-02", cluster.HealthCritical)

	data, err := ctx.ExportYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "scenarioId: test")

	var doc Export
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, cluster.HealthCritical, doc.Cluster.Nodes[1].Health)
}
