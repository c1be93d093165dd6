package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcsim/internal/cluster"
	"dcsim/internal/persist"
	"dcsim/internal/scenario"
	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
	"dcsim/internal/simulator/tools"
)

type harness struct {
	exec *Executor
	mgr  *scenario.Manager
	sc   *scenario.Context
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	mgr := scenario.NewManager(nil)
	sc, err := mgr.CreateContext("lab", cluster.MustPreset("small", 2))
	require.NoError(t, err)
	require.NoError(t, mgr.SetActiveContext("lab"))

	opts.Registry = tools.NewRegistry()
	opts.Manager = mgr
	return &harness{exec: NewExecutor(opts), mgr: mgr, sc: sc}
}

func TestRunDispatchesToSimulators(t *testing.T) {
	h := newHarness(t, Options{})

	res := h.exec.Run("hostname")
	assert.Equal(t, simulator.OK("node-01\n"), res)

	res = h.exec.Run("   ")
	assert.Equal(t, simulator.OK(""), res)

	res = h.exec.Run("| grep x")
	assert.Equal(t, simulator.ExitUsage, res.ExitCode)
	assert.Equal(t, "syntax error near unexpected token `|'\n", res.Output)

	res = h.exec.Run("--help")
	assert.Equal(t, simulator.Fail(simulator.ExitNotFound, "--help: command not found\n"), res)

	res = h.exec.Run("-x foo | wc -l")
	assert.Equal(t, simulator.Fail(simulator.ExitNotFound, "-x: command not found\n"), res)

	res = h.exec.Run("frobnicate --now")
	assert.Equal(t, simulator.ExitNotFound, res.ExitCode)
	assert.Equal(t, "frobnicate: command not found\n", res.Output)
}

func TestRunPipelines(t *testing.T) {
	h := newHarness(t, Options{})

	res := h.exec.Run("nvidia-smi -L | wc -l")
	assert.Equal(t, simulator.OK("2\n"), res)

	res = h.exec.Run("nvidia-smi -L | grep 'GPU 1'")
	require.True(t, res.Success())
	assert.Contains(t, res.Output, "GPU 1: NVIDIA A100-SXM4-40GB")
	assert.NotContains(t, res.Output, "GPU 0")

	// A failing head command is printed unfiltered.
	res = h.exec.Run("nvidia-smi --query-gpu=bogus --format=csv | wc -l")
	assert.Equal(t, simulator.ExitUsage, res.ExitCode)
	assert.Contains(t, res.Output, "is not a valid field to query")
}

func TestRunWithoutActiveScenario(t *testing.T) {
	mgr := scenario.NewManager(nil)
	exec := NewExecutor(Options{Registry: tools.NewRegistry(), Manager: mgr})

	res := exec.Run("nvidia-smi")
	assert.Equal(t, simulator.ExitFailure, res.ExitCode)
	assert.Equal(t, "no active scenario\n", res.Output)
	assert.Equal(t, "root@localhost:~# ", exec.Prompt("root@%s:~# "))
}

func TestDirectoryBuiltins(t *testing.T) {
	h := newHarness(t, Options{})

	tests := []struct {
		line string
		want string
	}{
		{"cd /var/log", "/var/log"},
		{"cd ..", "/var"},
		{"cd lib/nvidia", "/var/lib/nvidia"},
		{"cd", "/root"},
		{"cd /tmp", "/tmp"},
		{"cd ~", "/root"},
		{"cd ~/jobs", "/root/jobs"},
	}
	for _, tt := range tests {
		require.True(t, h.exec.Run(tt.line).Success(), tt.line)
		assert.Equal(t, tt.want+"\n", h.exec.Run("pwd").Output, tt.line)
	}
}

func TestExportBuiltin(t *testing.T) {
	h := newHarness(t, Options{Environment: map[string]string{"CUDA_VISIBLE_DEVICES": "0,1"}})

	require.True(t, h.exec.Run("export NCCL_DEBUG=INFO").Success())
	assert.Equal(t, "INFO", h.exec.CommandContext().Env("NCCL_DEBUG"))

	res := h.exec.Run("export")
	assert.Contains(t, res.Output, `declare -x CUDA_VISIBLE_DEVICES="0,1"`)
	assert.Contains(t, res.Output, `declare -x NCCL_DEBUG="INFO"`)

	res = h.exec.Run("export =oops")
	assert.Equal(t, simulator.ExitFailure, res.ExitCode)
}

func TestSSHAndExit(t *testing.T) {
	h := newHarness(t, Options{})
	const prompt = "root@%s:~# "

	assert.Equal(t, "root@node-01:~# ", h.exec.Prompt(prompt))
	assert.False(t, h.exec.Remote())

	res := h.exec.Run("ssh node-99")
	assert.Equal(t, 255, res.ExitCode)
	assert.Equal(t, "ssh: Could not resolve hostname node-99: Name or service not known\n", res.Output)

	require.True(t, h.exec.Run("ssh root@node-02").Success())
	assert.True(t, h.exec.Remote())
	assert.Equal(t, "root@node-02:~# ", h.exec.Prompt(prompt))
	assert.Equal(t, "node-02\n", h.exec.Run("hostname").Output)

	res = h.exec.Run("exit")
	assert.Equal(t, "logout\nConnection to node-02 closed.\n", res.Output)
	assert.False(t, h.exec.Remote())
	assert.False(t, h.exec.Exited())

	h.exec.Run("exit")
	assert.True(t, h.exec.Exited())
}

func TestHistoryBuiltin(t *testing.T) {
	h := newHarness(t, Options{})
	h.exec.Run("sinfo")
	h.exec.Run("nvidia-smi -L")

	res := h.exec.Run("history")
	assert.Equal(t, "    1  sinfo\n    2  nvidia-smi -L\n    3  history\n", res.Output)
}

func TestHelpListsToolsAndBuiltins(t *testing.T) {
	h := newHarness(t, Options{})
	res := h.exec.Run("help")
	assert.Contains(t, res.Output, "nvidia-smi")
	assert.Contains(t, res.Output, "ssh <node>")
	assert.Contains(t, h.exec.Completions(), "hint")
	assert.Contains(t, h.exec.Completions(), "sinfo")
}

func drainChallenge() scoring.Challenge {
	return scoring.Challenge{
		ID:    "drain-node",
		Title: "Drain a faulty node",
		Objectives: []scoring.Objective{
			{ID: "inspect", Points: 5, ValidationType: scoring.ValidationCommand, Pattern: `nvidia-smi\s+-q`},
			{ID: "drain", Points: 10, ValidationType: scoring.ValidationState, Pattern: `NodeState("node-02") == "drain"`},
		},
		Hints: []string{"Look at sinfo -R", "scontrol update takes a reason"},
	}
}

func TestEngineObservesCommands(t *testing.T) {
	var progress [][]string
	engine := scoring.NewEngine(nil)
	h := newHarness(t, Options{
		Engine:     engine,
		OnProgress: func(done []string) { progress = append(progress, done) },
	})
	engine.SetState(h.sc)
	engine.StartChallenge(drainChallenge())

	h.exec.Run("nvidia-smi -q -i 0 | head -n 3")
	h.exec.Run(`scontrol update nodename=node-02 state=drain reason="xid 79"`)
	assert.Equal(t, [][]string{{"inspect"}, {"drain"}}, progress)

	res := h.exec.Run("hint 2")
	assert.Equal(t, simulator.OK("Hint 2: scontrol update takes a reason\n"), res)
	res = h.exec.Run("hint 7")
	assert.Equal(t, simulator.ExitFailure, res.ExitCode)
	res = h.exec.Run("hint zero")
	assert.Equal(t, simulator.ExitUsage, res.ExitCode)

	res = h.exec.Run("status")
	require.True(t, res.Success())
	assert.Contains(t, res.Output, "15/15")

	res = h.exec.Run("submit")
	require.True(t, res.Success())
	assert.Contains(t, res.Output, "hints used 1")

	res = h.exec.Run("status")
	assert.Equal(t, simulator.ExitFailure, res.ExitCode)
	res = h.exec.Run("submit")
	assert.Equal(t, simulator.ExitFailure, res.ExitCode)
}

func TestChallengeBuiltinsAreNotGraded(t *testing.T) {
	engine := scoring.NewEngine(nil)
	h := newHarness(t, Options{Engine: engine})
	engine.StartChallenge(scoring.Challenge{
		ID:         "help",
		Objectives: []scoring.Objective{{ID: "hint", Points: 1, ValidationType: scoring.ValidationCommand, Pattern: "hint"}},
		Hints:      []string{"none"},
	})

	h.exec.Run("hint")
	progress, ok := engine.Progress()
	require.True(t, ok)
	assert.Zero(t, progress.PointsEarned)
	assert.Equal(t, 1, progress.HintsUsed)
}

func TestCheckpointsChangedScenarios(t *testing.T) {
	store, err := persist.New(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := newHarness(t, Options{Store: store})

	h.exec.Run("sinfo")
	require.NoError(t, store.Flush())
	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	h.exec.Run("scontrol update nodename=node-02 state=down reason=maint")
	h.exec.Run("sinfo")
	require.NoError(t, store.Flush())
	assert.Equal(t, 1, store.Writes())

	restored := scenario.NewManager(nil)
	sc, ok, err := LoadCheckpoint(store, restored, "lab")
	require.NoError(t, err)
	require.True(t, ok)
	node, _ := sc.Node("node-02")
	assert.Equal(t, cluster.SlurmDown, node.SlurmState)
	assert.Equal(t, 1, sc.MutationCount())

	_, ok, err = LoadCheckpoint(store, restored, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
