package formatting

import (
	"time"

	"dcsim/internal/scenario"
	"dcsim/internal/scoring"
)

// ScenarioSummary is one row of a scenario listing.
type ScenarioSummary struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	Readonly  bool      `json:"readonly"`
	Nodes     int       `json:"nodes"`
	GPUs      int       `json:"gpus"`
	Mutations int       `json:"mutations"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summarize builds the listing row for one context.
func Summarize(c *scenario.Context, active bool) ScenarioSummary {
	state := c.Cluster()
	return ScenarioSummary{
		ID:        c.ID(),
		Active:    active,
		Readonly:  c.IsReadonly(),
		Nodes:     len(state.Nodes),
		GPUs:      state.GPUCount(),
		Mutations: c.MutationCount(),
		CreatedAt: c.CreatedAt(),
	}
}

// challengeReport is the serialized form of a graded challenge.
type challengeReport struct {
	Challenge string                  `json:"challenge"`
	Title     string                  `json:"title"`
	Result    scoring.ChallengeResult `json:"result"`
}

// examReport is the serialized form of a graded exam.
type examReport struct {
	Exam   string                      `json:"exam"`
	Title  string                      `json:"title"`
	Result scoring.PracticalExamResult `json:"result"`
}
