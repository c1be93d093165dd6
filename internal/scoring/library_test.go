package scoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcsim/internal/scenario"
)

const challengeFile = `
challenges:
  - id: drain-node
    title: "Drain {{ .node }}"
    description: "GPU {{ .gpu }} on {{ .node | upper }} reports XID 79."
    vars:
      node: node-02
      gpu: "1"
    setup:
      preset: small
      nodes: 2
      faults:
        - type: xid
          node: node-02
          gpu: 1
          code: 79
    timeBonus:
      threshold: 300
      bonusPoints: 5
    hints:
      - "Use scontrol on {{ .node }}"
    objectives:
      - id: look
        points: 5
        type: command
        pattern: 'nvidia-smi'
      - id: drain
        points: 10
        type: state
        pattern: 'NodeState("{{ .node }}") == "drain"'
exams:
  - id: ops
    title: Operations
    challenges: [drain-node]
    passingScore: 70
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLibraryLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drain.yaml", challengeFile)
	writeFile(t, dir, "notes.txt", "not yaml")

	lib := NewLibrary(dir)
	require.NoError(t, lib.Load())

	ch, ok := lib.Challenge("drain-node")
	require.True(t, ok)
	assert.Equal(t, "Drain node-02", ch.Title)
	assert.Equal(t, "GPU 1 on NODE-02 reports XID 79.", ch.Description)
	assert.Equal(t, []string{"Use scontrol on node-02"}, ch.Hints)
	assert.Equal(t, `NodeState("node-02") == "drain"`, ch.Objectives[1].Pattern)
	assert.Equal(t, ValidationState, ch.Objectives[1].ValidationType)
	assert.Equal(t, 15, ch.TotalPoints())
	require.NotNil(t, ch.TimeBonus)
	assert.Equal(t, 300*time.Second, ch.TimeBonus.Duration())
	require.Len(t, ch.Setup.Faults, 1)
	assert.Equal(t, 1, *ch.Setup.Faults[0].GPU)

	ex, ok := lib.Exam("ops")
	require.True(t, ok)
	assert.Equal(t, []string{"drain-node"}, ex.ChallengeIDs)
	assert.Len(t, lib.Challenges(), 1)
	assert.Len(t, lib.Exams(), 1)
}

func TestLibraryLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drain.yml", challengeFile)
	lib := NewLibrary(filepath.Join(dir, "drain.yml"))
	require.NoError(t, lib.Load())
	_, ok := lib.Challenge("drain-node")
	assert.True(t, ok)
}

func TestLibraryLoadErrorsKeepPreviousContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drain.yaml", challengeFile)
	lib := NewLibrary(dir)
	require.NoError(t, lib.Load())

	writeFile(t, dir, "broken.yaml", `
challenges:
  - id: broken
    objectives:
      - id: x
        points: 0
        type: guess
        pattern: ""
`)
	err := lib.Load()
	require.Error(t, err)
	var verrs DefinitionErrors
	require.True(t, errors.As(err, &verrs))
	assert.GreaterOrEqual(t, len(verrs), 4)

	_, ok := lib.Challenge("drain-node")
	assert.True(t, ok)
	_, ok = lib.Challenge("broken")
	assert.False(t, ok)
}

func TestLibraryLoadRejectsUnknownExamChallenge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "exam.yaml", `
exams:
  - id: lonely
    challenges: [missing]
    passingScore: 50
`)
	err := NewLibrary(dir).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown challenge")
}

func TestLibraryLoadMissingDir(t *testing.T) {
	err := NewLibrary(filepath.Join(t.TempDir(), "nope")).Load()
	assert.Error(t, err)
}

func TestValidateChallenge(t *testing.T) {
	gpu := 0
	tests := []struct {
		name    string
		ch      Challenge
		wantErr string
	}{
		{
			name: "valid",
			ch: Challenge{ID: "ok", Title: "ok", Objectives: []Objective{
				{ID: "a", Points: 1, ValidationType: ValidationOutput, Pattern: "x"},
			}},
		},
		{
			name:    "no objectives",
			ch:      Challenge{ID: "empty", Title: "t"},
			wantErr: "at least one objective",
		},
		{
			name: "duplicate objective",
			ch: Challenge{ID: "dup", Title: "t", Objectives: []Objective{
				{ID: "a", Points: 1, ValidationType: ValidationCommand, Pattern: "x"},
				{ID: "a", Points: 1, ValidationType: ValidationCommand, Pattern: "y"},
			}},
			wantErr: "duplicate objective id",
		},
		{
			name: "state expression not boolean",
			ch: Challenge{ID: "s", Title: "t", Objectives: []Objective{
				{ID: "a", Points: 1, ValidationType: ValidationState, Pattern: `NodeState("node-01")`},
			}},
			wantErr: "does not compile",
		},
		{
			name: "bad time bonus",
			ch: Challenge{ID: "tb", Title: "t", TimeBonus: &TimeBonus{Threshold: 0, BonusPoints: -1}, Objectives: []Objective{
				{ID: "a", Points: 1, ValidationType: ValidationCommand, Pattern: "x"},
			}},
			wantErr: "threshold must be positive",
		},
		{
			name: "bad setup",
			ch: Challenge{ID: "su", Title: "t",
				Setup: &Setup{Preset: "cray", Faults: []scenario.Fault{{Type: scenario.FaultXID, Node: "node-01", GPU: &gpu}}},
				Objectives: []Objective{
					{ID: "a", Points: 1, ValidationType: ValidationCommand, Pattern: "x"},
				}},
			wantErr: "setup.faults[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChallenge(tt.ch)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateExam(t *testing.T) {
	assert.NoError(t, ValidateExam(PracticalExam{ID: "e", ChallengeIDs: []string{"a"}, PassingScore: 70}))
	err := ValidateExam(PracticalExam{PassingScore: 120})
	require.Error(t, err)
	var verrs DefinitionErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
}

func TestLibraryWatchReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "drain.yaml", challengeFile)
	lib := NewLibrary(dir)
	lib.ReloadDelay = 20 * time.Millisecond
	require.NoError(t, lib.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var reloads atomic.Int32
	go func() {
		done <- lib.Watch(ctx, func(err error) {
			if err == nil {
				reloads.Add(1)
			}
		})
	}()

	// the watch may not be registered yet, so keep touching files until a
	// reload lands
	n := 0
	assert.Eventually(t, func() bool {
		n++
		writeFile(t, dir, fmt.Sprintf("extra-%d.yaml", n), fmt.Sprintf(`
challenges:
  - id: extra-%d
    title: Extra
    objectives:
      - id: a
        points: 1
        type: command
        pattern: hostname
`, n))
		return reloads.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	_, ok := lib.Challenge("extra-1")
	assert.True(t, ok)
}
