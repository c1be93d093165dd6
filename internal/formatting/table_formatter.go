package formatting

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

// ChallengeResult prints one row per objective followed by the score.
func (f *TableFormatter) ChallengeResult(w io.Writer, ch scoring.Challenge, r scoring.ChallengeResult) error {
	t := f.createTable()
	t.SetTitle(fmt.Sprintf("%s: %s", ch.ID, ch.Title))
	t.AppendHeader(f.header("OBJECTIVE", "TYPE", "POINTS", "STATUS", "MATCHED BY"))

	for _, o := range ch.Objectives {
		res := r.Objectives[o.ID]
		status := f.paint(text.FgRed, "✗ open")
		points, matched := fmt.Sprintf("0/%d", o.Points), ""
		if res != nil && res.Completed {
			status = f.paint(text.FgGreen, "✓ done")
			points = fmt.Sprintf("%d/%d", res.PointsAwarded, o.Points)
			matched = truncate(res.MatchedCommand, 48)
		}
		name := o.ID
		if o.Description != "" {
			name = o.Description
		}
		t.AppendRow(table.Row{name, string(o.ValidationType), points, status, matched})
	}
	t.AppendFooter(table.Row{"TOTAL", "", fmt.Sprintf("%d/%d", r.PointsEarned, r.TotalPoints), f.percent(r.Ratio() * 100), ""})

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	if f.options.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(w, "Time %s · bonus +%d · hints used %d\n", FormatDuration(r.Duration), r.TimeBonusEarned, r.HintsUsed)
	return err
}

// ExamResult prints one row per challenge and the pass/fail verdict.
func (f *TableFormatter) ExamResult(w io.Writer, exam scoring.PracticalExam, r scoring.PracticalExamResult) error {
	t := f.createTable()
	t.SetTitle(fmt.Sprintf("%s: %s", exam.ID, exam.Title))
	t.AppendHeader(f.header("CHALLENGE", "POINTS", "BONUS", "HINTS", "TIME"))
	for _, cr := range r.Results {
		t.AppendRow(table.Row{
			cr.ChallengeID,
			fmt.Sprintf("%d/%d", cr.PointsEarned, cr.TotalPoints),
			cr.TimeBonusEarned,
			cr.HintsUsed,
			FormatDuration(cr.Duration),
		})
	}
	t.AppendFooter(table.Row{"TOTAL", fmt.Sprintf("%d/%d", r.PointsEarned, r.TotalPoints), "", r.HintsUsed, ""})
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	verdict := f.paint(text.FgRed, "FAILED")
	if r.Passed {
		verdict = f.paint(text.FgGreen, "PASSED")
	}
	_, err := fmt.Fprintf(w, "%s  score %.1f%% (pass mark %.0f%%, adjusted for hints %.1f%%)\n",
		verdict, r.Percentage, r.PassingScore, r.AdjustedScore)
	return err
}

// Challenges lists the challenge library.
func (f *TableFormatter) Challenges(w io.Writer, challenges []scoring.Challenge) error {
	if len(challenges) == 0 {
		return f.empty(w, "No challenges found")
	}
	t := f.createTable()
	t.AppendHeader(f.header("ID", "TITLE", "OBJECTIVES", "POINTS", "TIME BONUS"))
	for _, ch := range challenges {
		bonus := "-"
		if ch.TimeBonus != nil {
			bonus = fmt.Sprintf("+%d under %ds", ch.TimeBonus.BonusPoints, ch.TimeBonus.Threshold)
		}
		t.AppendRow(table.Row{f.paint(text.FgHiCyan, ch.ID), ch.Title, len(ch.Objectives), ch.TotalPoints(), bonus})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Tools lists registered simulators and the commands each serves.
func (f *TableFormatter) Tools(w io.Writer, tools []simulator.Metadata) error {
	if len(tools) == 0 {
		return f.empty(w, "No tools registered")
	}
	t := f.createTable()
	t.AppendHeader(f.header("TOOL", "VERSION", "COMMANDS", "DESCRIPTION"))
	for _, m := range tools {
		cmds := append([]string(nil), m.Commands...)
		sort.Strings(cmds)
		t.AppendRow(table.Row{f.paint(text.FgHiCyan, m.Name), m.Version, strings.Join(cmds, ", "), m.Description})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Scenarios lists scenario contexts.
func (f *TableFormatter) Scenarios(w io.Writer, scenarios []ScenarioSummary) error {
	if len(scenarios) == 0 {
		return f.empty(w, "No scenarios found")
	}
	t := f.createTable()
	t.AppendHeader(f.header("", "ID", "NODES", "GPUS", "MUTATIONS", "MODE", "CREATED"))
	for _, s := range scenarios {
		marker, mode := "", "rw"
		if s.Active {
			marker = f.paint(text.FgGreen, "*")
		}
		if s.Readonly {
			mode = f.paint(text.FgYellow, "ro")
		}
		t.AppendRow(table.Row{marker, s.ID, s.Nodes, s.GPUs, s.Mutations, mode, s.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = f.paint(text.FgHiCyan, c)
	}
	return row
}

func (f *TableFormatter) paint(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) percent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

// empty formats empty result messages
func (f *TableFormatter) empty(w io.Writer, message string) error {
	_, err := fmt.Fprintf(w, "%s\n", f.paint(text.FgYellow, message))
	return err
}

// truncate collapses whitespace to single spaces and cuts s to n runes,
// ending in "..." when shortened.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:max(n-3, 1)]) + "..."
}
