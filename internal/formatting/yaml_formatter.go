package formatting

import (
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
)

// YAMLFormatter provides YAML output formatting. Field names follow the
// JSON tags so both formats agree.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

func (f *YAMLFormatter) ChallengeResult(w io.Writer, ch scoring.Challenge, r scoring.ChallengeResult) error {
	return f.write(w, challengeReport{Challenge: ch.ID, Title: ch.Title, Result: r})
}

func (f *YAMLFormatter) ExamResult(w io.Writer, exam scoring.PracticalExam, r scoring.PracticalExamResult) error {
	return f.write(w, examReport{Exam: exam.ID, Title: exam.Title, Result: r})
}

func (f *YAMLFormatter) Challenges(w io.Writer, challenges []scoring.Challenge) error {
	return f.write(w, nonNil(challenges))
}

func (f *YAMLFormatter) Tools(w io.Writer, tools []simulator.Metadata) error {
	return f.write(w, nonNil(tools))
}

func (f *YAMLFormatter) Scenarios(w io.Writer, scenarios []ScenarioSummary) error {
	return f.write(w, nonNil(scenarios))
}

func (f *YAMLFormatter) write(w io.Writer, data interface{}) error {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = w.Write(b)
	return err
}
