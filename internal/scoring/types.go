package scoring

import (
	"time"

	"dcsim/internal/scenario"
)

// ValidationType selects what an objective's pattern is matched against.
type ValidationType string

const (
	// ValidationCommand matches the command line as typed
	ValidationCommand ValidationType = "command"
	// ValidationOutput matches the command's output
	ValidationOutput ValidationType = "output"
	// ValidationState evaluates a boolean expression over cluster state
	ValidationState ValidationType = "state"
)

// Challenge is a timed practical exercise.
type Challenge struct {
	ID          string            `yaml:"id" json:"id"`
	Title       string            `yaml:"title" json:"title"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Objectives  []Objective       `yaml:"objectives" json:"objectives"`
	Hints       []string          `yaml:"hints,omitempty" json:"hints,omitempty"`
	TimeBonus   *TimeBonus        `yaml:"timeBonus,omitempty" json:"timeBonus,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`
	Setup       *Setup            `yaml:"setup,omitempty" json:"setup,omitempty"`
}

// TotalPoints sums the points of every objective.
func (c Challenge) TotalPoints() int {
	total := 0
	for _, o := range c.Objectives {
		total += o.Points
	}
	return total
}

// Setup describes the cluster a challenge is graded against.
type Setup struct {
	Preset string           `yaml:"preset,omitempty" json:"preset,omitempty"`
	Nodes  int              `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Faults []scenario.Fault `yaml:"faults,omitempty" json:"faults,omitempty"`
}

// Objective is one gradable unit of a challenge.
type Objective struct {
	ID             string         `yaml:"id" json:"id"`
	Description    string         `yaml:"description,omitempty" json:"description,omitempty"`
	Points         int            `yaml:"points" json:"points"`
	ValidationType ValidationType `yaml:"type" json:"type"`
	Pattern        string         `yaml:"pattern" json:"pattern"`
}

// TimeBonus awards extra points for finishing within Threshold seconds.
type TimeBonus struct {
	Threshold   int `yaml:"threshold" json:"threshold"`
	BonusPoints int `yaml:"bonusPoints" json:"bonusPoints"`
}

// Duration returns the threshold as a time.Duration.
func (tb TimeBonus) Duration() time.Duration {
	return time.Duration(tb.Threshold) * time.Second
}

// ObjectiveResult tracks one objective within an attempt.
type ObjectiveResult struct {
	ObjectiveID    string    `json:"objectiveId"`
	Completed      bool      `json:"completed"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`
	PointsAwarded  int       `json:"pointsAwarded"`
	MatchedCommand string    `json:"matchedCommand,omitempty"`
}

// ChallengeResult is the running and final score of one attempt.
type ChallengeResult struct {
	ChallengeID     string                      `json:"challengeId"`
	StartedAt       time.Time                   `json:"startedAt"`
	CompletedAt     time.Time                   `json:"completedAt,omitempty"`
	Duration        time.Duration               `json:"duration"`
	Objectives      map[string]*ObjectiveResult `json:"objectives"`
	PointsEarned    int                         `json:"pointsEarned"`
	TotalPoints     int                         `json:"totalPoints"`
	TimeBonusEarned int                         `json:"timeBonusEarned"`
	HintsUsed       int                         `json:"hintsUsed"`
	Completed       bool                        `json:"completed"`
}

// Ratio returns PointsEarned / TotalPoints, or 0 when there are no points.
func (r ChallengeResult) Ratio() float64 {
	if r.TotalPoints == 0 {
		return 0
	}
	return float64(r.PointsEarned) / float64(r.TotalPoints)
}

func (r ChallengeResult) clone() ChallengeResult {
	out := r
	out.Objectives = make(map[string]*ObjectiveResult, len(r.Objectives))
	for k, v := range r.Objectives {
		o := *v
		out.Objectives[k] = &o
	}
	return out
}

// PracticalExam groups challenges under one pass mark.
type PracticalExam struct {
	ID           string   `yaml:"id" json:"id"`
	Title        string   `yaml:"title" json:"title"`
	ChallengeIDs []string `yaml:"challenges" json:"challenges"`
	// PassingScore is a percentage in [0, 100]
	PassingScore float64 `yaml:"passingScore" json:"passingScore"`
}

// PracticalExamResult aggregates the challenge results of an exam.
type PracticalExamResult struct {
	ExamID        string            `json:"examId"`
	Results       []ChallengeResult `json:"results"`
	PointsEarned  int               `json:"pointsEarned"`
	TotalPoints   int               `json:"totalPoints"`
	Percentage    float64           `json:"percentage"`
	PassingScore  float64           `json:"passingScore"`
	Passed        bool              `json:"passed"`
	HintsUsed     int               `json:"hintsUsed"`
	HintPenalty   float64           `json:"hintPenalty"`
	AdjustedScore float64           `json:"adjustedScore"`
}
