package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcsim/internal/scoring"
)

func TestReadScript(t *testing.T) {
	script := `
# inspect first
nvidia-smi -q

  sinfo -R
`
	lines, err := ReadScript(strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, []string{"nvidia-smi -q", "sinfo -R"}, lines)
}

func TestGradeRunsChallengesInIsolation(t *testing.T) {
	drain := scoring.Challenge{
		ID: "drain",
		Objectives: []scoring.Objective{
			{ID: "inspect", Points: 5, ValidationType: scoring.ValidationCommand, Pattern: `nvidia-smi -q`},
			{ID: "drain", Points: 10, ValidationType: scoring.ValidationState, Pattern: `NodeState("node-02") == "drain"`},
		},
	}
	diag := scoring.Challenge{
		ID: "diag",
		Objectives: []scoring.Objective{
			{ID: "diag", Points: 10, ValidationType: scoring.ValidationCommand, Pattern: `dcgmi diag`},
		},
	}
	script := []string{
		"nvidia-smi -q",
		`scontrol update nodename=node-02 state=drain reason="xid 79"`,
	}

	results, err := Grade(context.Background(), []scoring.Challenge{drain, diag}, script, "small")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "drain", results[0].ChallengeID)
	assert.Equal(t, 15, results[0].PointsEarned)
	assert.True(t, results[0].Completed)

	assert.Equal(t, "diag", results[1].ChallengeID)
	assert.Zero(t, results[1].PointsEarned)
	assert.Equal(t, 10, results[1].TotalPoints)
}

func TestGradeFailsOnBadSetup(t *testing.T) {
	bad := scoring.Challenge{ID: "bad", Setup: &scoring.Setup{Preset: "cray"}}
	_, err := Grade(context.Background(), []scoring.Challenge{bad}, nil, "small")
	assert.Error(t, err)
}

func TestGradeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := scoring.Challenge{ID: "c", Objectives: []scoring.Objective{{ID: "o", Points: 1, ValidationType: scoring.ValidationCommand, Pattern: "x"}}}
	_, err := Grade(ctx, []scoring.Challenge{ch}, []string{"sinfo"}, "small")
	assert.ErrorIs(t, err, context.Canceled)
}
