// Package formatting renders dcsim's own reports (grades, challenge lists,
// tool inventories, scenario lists) for the CLI.
//
// Simulated tool output is produced by the simulators themselves and never
// passes through this package.
package formatting

import (
	"fmt"
	"io"
	"strings"

	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat maps a --output flag value onto an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unsupported output format %q (table, json, yaml)", s)
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Compact JSON, no summary lines
	Color  bool // Enable colored output
}

// Formatter renders reports to a writer.
type Formatter interface {
	ChallengeResult(w io.Writer, ch scoring.Challenge, r scoring.ChallengeResult) error
	ExamResult(w io.Writer, exam scoring.PracticalExam, r scoring.PracticalExamResult) error
	Challenges(w io.Writer, challenges []scoring.Challenge) error
	Tools(w io.Writer, tools []simulator.Metadata) error
	Scenarios(w io.Writer, scenarios []ScenarioSummary) error
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
