package cluster

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPreset(t *testing.T) {
	s, err := NewPreset("small", 0)
	require.NoError(t, err)

	assert.Equal(t, "small", s.Name)
	require.Len(t, s.Nodes, 2)
	assert.Equal(t, "node-01", s.Nodes[0].ID)
	assert.Equal(t, "node-02", s.Nodes[1].ID)
	require.Len(t, s.Nodes[0].GPUs, 2)
	assert.Equal(t, 35.0, s.Nodes[0].GPUs[0].Temperature)
	assert.Equal(t, HealthOK, s.Nodes[0].Health)
	assert.Equal(t, SlurmIdle, s.Nodes[0].SlurmState)
	assert.Equal(t, 4, s.GPUCount())
	assert.NoError(t, s.Validate())
}

func TestNewPresetUnknown(t *testing.T) {
	_, err := NewPreset("dgx-z9", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestPresetIdentifiersAreStable(t *testing.T) {
	a := MustPreset("dgx-h100", 2)
	b := MustPreset("dgx-h100", 2)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("presets differ between builds (-a +b):\n%s", diff)
	}
	assert.NotEqual(t, a.Nodes[0].GPUs[0].UUID, a.Nodes[0].GPUs[1].UUID)
	assert.NotEqual(t, a.Nodes[0].GPUs[0].UUID, a.Nodes[1].GPUs[0].UUID)
	assert.Regexp(t, `^GPU-[0-9a-f-]{36}$`, a.Nodes[0].GPUs[0].UUID)
}

func TestDeepCopyIsIndependent(t *testing.T) {
	orig := MustPreset("small", 2)
	orig.Nodes[0].GPUs[0].XIDErrors = []XIDError{{Code: 79, Message: "off the bus", Timestamp: time.Unix(10, 0)}}

	clone := orig.DeepCopy()
	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Fatalf("clone differs from original (-orig +clone):\n%s", diff)
	}

	clone.Nodes[0].GPUs[0].Temperature = 90
	clone.Nodes[0].GPUs[0].XIDErrors[0].Code = 48
	clone.Nodes[0].GPUs[0].NVLinks[0].Active = false
	clone.Nodes[0].HCAs[0].Ports[0].State = "Down"
	clone.SlurmPartitions[0].Nodes[0] = "renamed"
	clone.Jobs = append(clone.Jobs, Job{ID: 7})

	assert.Equal(t, 35.0, orig.Nodes[0].GPUs[0].Temperature)
	assert.Equal(t, 79, orig.Nodes[0].GPUs[0].XIDErrors[0].Code)
	assert.True(t, orig.Nodes[0].GPUs[0].NVLinks[0].Active)
	assert.Equal(t, "Active", orig.Nodes[0].HCAs[0].Ports[0].State)
	assert.Equal(t, "node-01", orig.SlurmPartitions[0].Nodes[0])
	assert.Len(t, orig.Jobs, 1)
}

func TestDeepCopyNil(t *testing.T) {
	var s *State
	assert.Nil(t, s.DeepCopy())
}

func TestGPUUpdateApply(t *testing.T) {
	g := GPU{Temperature: 35, XIDErrors: []XIDError{{Code: 13}}}

	applied := GPUUpdate{
		Temperature:    Ptr(82.5),
		Health:         Ptr(HealthWarning),
		ClearXIDErrors: true,
	}.Apply(&g)

	assert.Equal(t, 82.5, g.Temperature)
	assert.Equal(t, HealthWarning, g.Health)
	assert.Empty(t, g.XIDErrors)
	assert.Equal(t, map[string]any{
		"temperature":    82.5,
		"health":         "Warning",
		"clearXidErrors": true,
	}, applied)

	assert.True(t, GPUUpdate{}.IsEmpty())
	assert.False(t, GPUUpdate{ClearXIDErrors: true}.IsEmpty())
}

func TestLookups(t *testing.T) {
	s := MustPreset("small", 2)

	require.NotNil(t, s.Node("node-02"))
	assert.Nil(t, s.Node("node-99"))
	assert.NotNil(t, s.Node("node-01").GPU(1))
	assert.Nil(t, s.Node("node-01").GPU(99))
}

func TestValidate(t *testing.T) {
	s := MustPreset("small", 2)
	s.Nodes[1].ID = "node-01"
	s.Nodes[0].GPUs[1].ID = 0

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
	assert.Contains(t, err.Error(), "duplicate gpu index 0")
}

func TestParseStates(t *testing.T) {
	st, ok := ParseSlurmState("RESUME")
	assert.True(t, ok)
	assert.Equal(t, SlurmIdle, st)

	_, ok = ParseSlurmState("sleeping")
	assert.False(t, ok)

	h, ok := ParseHealthStatus("critical")
	assert.True(t, ok)
	assert.Equal(t, HealthCritical, h)
}

func TestXID(t *testing.T) {
	assert.Equal(t, "GPU has fallen off the bus", XIDDescription(79))
	assert.Equal(t, "Unknown XID", XIDDescription(1))
	assert.Equal(t, HealthCritical, XIDSeverity(79))
	assert.Equal(t, HealthWarning, XIDSeverity(13))
}
