package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcsim/internal/config"
	"dcsim/internal/simulator"
)

const challengeYAML = `
challenges:
  - id: drain-node
    title: Drain a node
    setup:
      preset: small
      faults:
        - type: xid
          node: node-02
          gpu: 0
          code: 79
    hints: ["sinfo -R lists reasons"]
    objectives:
      - id: find
        points: 5
        type: output
        pattern: 'Xid.*79'
      - id: drain
        points: 10
        type: state
        pattern: 'NodeState("node-02") == "drain"'
`

func testSettings(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	s := config.GetDefaultConfig()
	s.StateDir = filepath.Join(dir, "state")
	s.ChallengeDir = filepath.Join(dir, "challenges")
	s.HistoryFile = filepath.Join(dir, "history")
	s.Cluster.Preset = "small"
	s.Sampler.Enabled = false
	return &s
}

func newTestApp(t *testing.T, settings *config.Config) *Application {
	t.Helper()
	copied := *settings
	a, err := NewApplication(&Config{Settings: &copied, Silent: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewApplicationLoadsConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
cluster:
  preset: dgx-h100
  nodes: 3
sampler:
  enabled: false
`), 0o644))

	a, err := NewApplication(&Config{ConfigPath: dir, Silent: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, filepath.Join(dir, "state"), a.Settings().StateDir)
	assert.Nil(t, a.Services().Sampler)
	sc := a.Services().Manager.ActiveContext()
	require.NotNil(t, sc)
	assert.Equal(t, DefaultScenarioID, sc.ID())
	assert.Len(t, sc.Cluster().Nodes, 3)
}

func TestNewApplicationRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cluster:\n  preset: cray\n"), 0o644))

	_, err := NewApplication(&Config{ConfigPath: dir, Silent: true})
	assert.Error(t, err)

	_, err = NewApplication(&Config{Settings: testSettings(t), LogLevel: "loud", Silent: true})
	assert.Error(t, err)
}

func TestExecRunsAgainstDefaultScenario(t *testing.T) {
	a := newTestApp(t, testSettings(t))

	assert.Equal(t, simulator.OK("node-01\n"), a.Exec("hostname"))
	assert.Equal(t, simulator.OK("2\n"), a.Exec("nvidia-smi -L | wc -l"))
	assert.Equal(t, simulator.ExitNotFound, a.Exec("htop").ExitCode)
}

func TestDefaultScenarioSurvivesRestart(t *testing.T) {
	settings := testSettings(t)

	first := newTestApp(t, settings)
	require.True(t, first.Exec("scontrol update nodename=node-02 state=drain reason=maint").Success())
	require.NoError(t, first.Close())

	second := newTestApp(t, settings)
	res := second.Exec("scontrol show node node-02")
	assert.Contains(t, res.Output, "State=DRAIN")
	assert.Equal(t, 1, second.Services().Manager.ActiveContext().MutationCount())
}

func TestPersistDisabled(t *testing.T) {
	settings := testSettings(t)
	settings.Persist.Enabled = false

	a := newTestApp(t, settings)
	assert.Nil(t, a.Services().Store)
	a.Exec("scontrol update nodename=node-02 state=down reason=maint")
	_, err := os.Stat(settings.StateDir)
	assert.True(t, os.IsNotExist(err))
}

func TestStartChallenge(t *testing.T) {
	settings := testSettings(t)
	require.NoError(t, os.MkdirAll(settings.ChallengeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(settings.ChallengeDir, "drain.yaml"), []byte(challengeYAML), 0o644))

	a := newTestApp(t, settings)
	svc := a.Services()

	_, err := svc.StartChallenge("nope")
	assert.Error(t, err)

	ch, err := svc.StartChallenge("drain-node")
	require.NoError(t, err)
	assert.Equal(t, "Drain a node", ch.Title)
	assert.Equal(t, "drain-node", svc.Manager.ActiveContext().ID())

	exec := svc.NewExecutor(nil)
	exec.Run("ssh node-02")
	exec.Run("dmesg | grep -i xid")
	exec.Run(`scontrol update nodename=node-02 state=drain reason="xid 79"`)

	progress, ok := svc.Engine.Progress()
	require.True(t, ok)
	assert.Equal(t, 15, progress.PointsEarned)
}

func TestActiveScenarioTarget(t *testing.T) {
	a := newTestApp(t, testSettings(t))
	target := activeScenario{a.Services().Manager}

	assert.Len(t, target.Cluster().Nodes, 2)

	a.Services().Manager.ClearAll()
	assert.Empty(t, target.Cluster().Nodes)
}

func TestRestoreAndResetCheckpoints(t *testing.T) {
	settings := testSettings(t)

	first := newTestApp(t, settings)
	svc := first.Services()
	_, err := svc.Manager.CreateContext("lab", svc.Manager.ActiveContext().Snapshot())
	require.NoError(t, err)
	require.NoError(t, svc.Manager.SetActiveContext("lab"))
	require.True(t, first.Exec("scontrol update nodename=node-01 state=down reason=rma").Success())
	require.NoError(t, svc.Manager.SetActiveContext(DefaultScenarioID))
	require.True(t, first.Exec("scontrol update nodename=node-02 state=drain reason=maint").Success())
	require.NoError(t, first.Close())

	second := newTestApp(t, settings)
	svc = second.Services()
	restored, err := svc.RestoreCheckpoints()
	require.NoError(t, err)
	assert.Equal(t, []string{"lab"}, restored)
	assert.Equal(t, []string{DefaultScenarioID, "lab"}, svc.Manager.ListContexts())

	require.NoError(t, svc.ResetScenario(DefaultScenarioID))
	node, ok := svc.Manager.ActiveContext().Node("node-02")
	require.True(t, ok)
	assert.Equal(t, "idle", string(node.SlurmState))

	require.NoError(t, svc.ResetScenario("lab"))
	assert.Equal(t, []string{DefaultScenarioID}, svc.Manager.ListContexts())
	keys, err := svc.Store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
