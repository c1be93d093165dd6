package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"dcsim/internal/app"
	"dcsim/internal/formatting"
	"dcsim/internal/scoring"
)

var (
	gradeScript       string
	gradeChallenges   []string
	gradeExam         string
	gradeChallengeDir string
	gradeOutputFormat string
	gradeQuiet        bool
	gradeNoColor      bool
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade a command script against challenges",
	Long: `Replays a script of commands against one or more challenges and prints
per-objective results. Every challenge runs on its own fresh cluster.

The script holds one command per line; blank lines and lines starting with #
are ignored.

Without --challenge or --exam every challenge in the library is graded. With
--exam the exam's challenges are graded and the command exits with status 2
when the exam is not passed.

Examples:
  dcsim grade --script answers.sh --challenge drain-node
  dcsim grade --script answers.sh --exam ops-basics -o json`,
	Args: cobra.NoArgs,
	RunE: runGrade,
}

func runGrade(cmd *cobra.Command, args []string) error {
	format, err := formatting.ParseFormat(gradeOutputFormat)
	if err != nil {
		return err
	}

	f, err := os.Open(gradeScript)
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	script, err := app.ReadScript(f)
	f.Close()
	if err != nil {
		return err
	}

	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	library := application.Services().Library
	if gradeChallengeDir != "" {
		library = scoring.NewLibrary(gradeChallengeDir)
		if err := library.Load(); err != nil {
			return err
		}
	}

	challenges, exam, err := selectChallenges(library, gradeChallenges, gradeExam)
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	if !gradeQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Grading %d challenge(s)...", len(challenges))
		s.Start()
	}
	results, err := app.Grade(commandContext(cmd), challenges, script, application.Settings().Cluster.Preset)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	formatter := formatting.New(formatting.Options{
		Format: format,
		Quiet:  gradeQuiet,
		Color:  !gradeNoColor && format == formatting.FormatTable,
	})
	out := cmd.OutOrStdout()

	if exam != nil {
		examResult := scoring.AggregateExam(*exam, results)
		if err := formatter.ExamResult(out, *exam, examResult); err != nil {
			return err
		}
		if !examResult.Passed {
			return &ExitError{Code: ExitCodeGradeFailed}
		}
		return nil
	}

	for i, r := range results {
		if err := formatter.ChallengeResult(out, challenges[i], r); err != nil {
			return err
		}
	}
	return nil
}

// selectChallenges resolves the challenges to grade. The exam is returned
// when examID is set.
func selectChallenges(library *scoring.Library, ids []string, examID string) ([]scoring.Challenge, *scoring.PracticalExam, error) {
	var exam *scoring.PracticalExam
	if examID != "" {
		ex, ok := library.Exam(examID)
		if !ok {
			return nil, nil, fmt.Errorf("exam %q not found", examID)
		}
		exam = &ex
		ids = ex.ChallengeIDs
	}

	if len(ids) == 0 {
		all := library.Challenges()
		if len(all) == 0 {
			return nil, nil, fmt.Errorf("no challenges found in %s", library.Dir())
		}
		return all, exam, nil
	}

	challenges := make([]scoring.Challenge, 0, len(ids))
	for _, id := range ids {
		ch, ok := library.Challenge(id)
		if !ok {
			return nil, nil, fmt.Errorf("challenge %q not found", id)
		}
		challenges = append(challenges, ch)
	}
	return challenges, exam, nil
}

func init() {
	rootCmd.AddCommand(gradeCmd)

	gradeCmd.Flags().StringVar(&gradeScript, "script", "", "File with the commands to replay (required)")
	gradeCmd.Flags().StringSliceVar(&gradeChallenges, "challenge", nil, "Challenge id to grade (repeatable)")
	gradeCmd.Flags().StringVar(&gradeExam, "exam", "", "Grade every challenge of this exam")
	gradeCmd.Flags().StringVar(&gradeChallengeDir, "challenges", "", "Challenge file or directory (default from config)")
	gradeCmd.Flags().StringVarP(&gradeOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	gradeCmd.Flags().BoolVarP(&gradeQuiet, "quiet", "q", false, "Suppress the progress spinner and summary lines")
	gradeCmd.Flags().BoolVar(&gradeNoColor, "no-color", false, "Disable colored output")
	_ = gradeCmd.MarkFlagRequired("script")
}
