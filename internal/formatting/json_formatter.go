package formatting

import (
	"encoding/json"
	"fmt"
	"io"

	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
)

// JSONFormatter provides JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

func (f *JSONFormatter) ChallengeResult(w io.Writer, ch scoring.Challenge, r scoring.ChallengeResult) error {
	return f.write(w, challengeReport{Challenge: ch.ID, Title: ch.Title, Result: r})
}

func (f *JSONFormatter) ExamResult(w io.Writer, exam scoring.PracticalExam, r scoring.PracticalExamResult) error {
	return f.write(w, examReport{Exam: exam.ID, Title: exam.Title, Result: r})
}

func (f *JSONFormatter) Challenges(w io.Writer, challenges []scoring.Challenge) error {
	return f.write(w, nonNil(challenges))
}

func (f *JSONFormatter) Tools(w io.Writer, tools []simulator.Metadata) error {
	return f.write(w, nonNil(tools))
}

func (f *JSONFormatter) Scenarios(w io.Writer, scenarios []ScenarioSummary) error {
	return f.write(w, nonNil(scenarios))
}

func (f *JSONFormatter) write(w io.Writer, data interface{}) error {
	var out string
	if f.options.Quiet {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		out = string(b)
	} else {
		out = PrettyJSON(data)
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

// nonNil keeps empty listings rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
