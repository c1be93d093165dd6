package cmd

import (
	"github.com/spf13/cobra"

	"dcsim/internal/formatting"
	"dcsim/internal/scoring"
)

var (
	challengesOutputFormat string
	challengesDir          string
)

var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "List the challenges in the library",
	Long: `Lists the challenges loaded from the challenge directory (challengeDir in
config.yaml, or --dir). Files are validated while loading; invalid files are
reported as errors.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatting.ParseFormat(challengesOutputFormat)
		if err != nil {
			return err
		}

		var library *scoring.Library
		if challengesDir != "" {
			library = scoring.NewLibrary(challengesDir)
			if err := library.Load(); err != nil {
				return err
			}
		} else {
			application, err := newApplication()
			if err != nil {
				return err
			}
			defer application.Close()
			library = application.Services().Library
		}
		return formatting.New(formatting.Options{Format: format}).Challenges(cmd.OutOrStdout(), library.Challenges())
	},
}

func init() {
	rootCmd.AddCommand(challengesCmd)

	challengesCmd.Flags().StringVarP(&challengesOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	challengesCmd.Flags().StringVar(&challengesDir, "dir", "", "Challenge file or directory")
}
