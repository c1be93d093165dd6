package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChallenges = `
challenges:
  - id: list-gpus
    title: List GPUs
    objectives:
      - id: list
        points: 10
        type: command
        pattern: 'nvidia-smi -L'
  - id: drain
    title: Drain node-02
    objectives:
      - id: drain
        points: 10
        type: state
        pattern: 'NodeState("node-02") == "drain"'
exams:
  - id: basics
    title: Basics
    challenges: [list-gpus, drain]
    passingScore: 75
`

// useConfigDir points the global --config-path at a fresh directory with a
// small cluster and a challenge library.
func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
logLevel: error
cluster:
  preset: small
sampler:
  enabled: false
`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "challenges"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "challenges", "basics.yaml"), []byte(testChallenges), 0o644))

	original := configPath
	configPath = dir
	t.Cleanup(func() { configPath = original })
	return dir
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetErr(&bytes.Buffer{})
	return c, &out
}

func TestExecPassesThroughExitCode(t *testing.T) {
	useConfigDir(t)

	c, out := newTestCmd()
	require.NoError(t, runExec(c, []string{"hostname"}))
	assert.Equal(t, "node-01\n", out.String())

	c, out = newTestCmd()
	err := runExec(c, []string{"nvidia-smi", "-L", "|", "wc", "-l"})
	require.NoError(t, err)
	assert.Equal(t, "2\n", out.String())

	c, out = newTestCmd()
	err = runExec(c, []string{"nvtop"})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 127, exitErr.Code)
	assert.Equal(t, "nvtop: command not found\n", out.String())
}

func TestExecChangesPersist(t *testing.T) {
	dir := useConfigDir(t)

	c, _ := newTestCmd()
	require.NoError(t, runExec(c, []string{"scontrol", "update", "nodename=node-02", "state=down", "reason=rma"}))
	assert.FileExists(t, filepath.Join(dir, "state", "scenario-default.json"))

	c, out := newTestCmd()
	require.NoError(t, runExec(c, []string{"scontrol", "show", "node", "node-02"}))
	assert.Contains(t, out.String(), "State=DOWN")
}

func TestExecKeepsQuotedWords(t *testing.T) {
	useConfigDir(t)

	c, _ := newTestCmd()
	require.NoError(t, runExec(c, []string{"scontrol", "update", "nodename=node-02", "state=drain", "reason=GPU fault"}))

	c, out := newTestCmd()
	require.NoError(t, runExec(c, []string{"scontrol show node node-02 | grep Reason"}))
	assert.Contains(t, out.String(), "Reason=GPU fault")
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"nvidia-smi -q | grep -i temp"}, "nvidia-smi -q | grep -i temp"},
		{[]string{"nvidia-smi", "-L"}, "nvidia-smi -L"},
		{[]string{"scontrol", "update", "reason=GPU fault"}, `scontrol update reason="GPU fault"`},
		{[]string{"grep", "a b"}, `grep "a b"`},
		{[]string{"echo", `say "hi"`}, `echo "say "'"'"hi"'"'""`},
		{[]string{"echo", ""}, `echo ""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commandLine(tt.args))
	}
}

func setGradeFlags(t *testing.T, script string, challenges []string, exam string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "answers.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	saved := []interface{}{gradeScript, gradeChallenges, gradeExam, gradeOutputFormat, gradeQuiet}
	gradeScript, gradeChallenges, gradeExam, gradeOutputFormat, gradeQuiet = path, challenges, exam, "json", true
	t.Cleanup(func() {
		gradeScript = saved[0].(string)
		gradeChallenges = saved[1].([]string)
		gradeExam = saved[2].(string)
		gradeOutputFormat = saved[3].(string)
		gradeQuiet = saved[4].(bool)
	})
}

func TestGradeChallenge(t *testing.T) {
	useConfigDir(t)
	setGradeFlags(t, "# warm up\nnvidia-smi -L\n", []string{"list-gpus"}, "")

	c, out := newTestCmd()
	require.NoError(t, runGrade(c, nil))
	assert.Contains(t, out.String(), `"challengeId":"list-gpus"`)
	assert.Contains(t, out.String(), `"pointsEarned":10`)
}

func TestGradeExamVerdict(t *testing.T) {
	useConfigDir(t)

	setGradeFlags(t, "nvidia-smi -L\n", nil, "basics")
	c, _ := newTestCmd()
	err := runGrade(c, nil)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "half the points must fail the exam")
	assert.Equal(t, ExitCodeGradeFailed, exitErr.Code)

	setGradeFlags(t, "nvidia-smi -L\nscontrol update nodename=node-02 state=drain reason=xid\n", nil, "basics")
	c, out := newTestCmd()
	require.NoError(t, runGrade(c, nil))
	assert.Contains(t, out.String(), `"passed":true`)
}

func TestGradeUnknownChallenge(t *testing.T) {
	useConfigDir(t)
	setGradeFlags(t, "sinfo\n", []string{"nope"}, "")

	c, _ := newTestCmd()
	assert.ErrorContains(t, runGrade(c, nil), `challenge "nope" not found`)
}
