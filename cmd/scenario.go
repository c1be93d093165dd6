package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dcsim/internal/app"
	"dcsim/internal/formatting"
)

var (
	scenarioOutputFormat string
	scenarioExportFormat string
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect and manage saved scenarios",
	Long: `Scenarios are the simulated clusters the shell works on. The shell saves
every scenario it changes; these commands read and discard those saves.`,
}

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatting.ParseFormat(scenarioOutputFormat)
		if err != nil {
			return err
		}
		application, err := newApplication()
		if err != nil {
			return err
		}
		defer application.Close()

		svc := application.Services()
		if _, err := svc.RestoreCheckpoints(); err != nil {
			return err
		}
		active := svc.Manager.ActiveContext()
		ids := svc.Manager.ListContexts()
		summaries := make([]formatting.ScenarioSummary, 0, len(ids))
		for _, id := range ids {
			sc, ok := svc.Manager.GetContext(id)
			if !ok {
				continue
			}
			summaries = append(summaries, formatting.Summarize(sc, active != nil && active.ID() == id))
		}
		return formatting.New(formatting.Options{Format: format}).Scenarios(cmd.OutOrStdout(), summaries)
	},
}

var scenarioExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Print a scenario's cluster state and mutation log",
	Long: `Exports a scenario as a diagnostic document holding the current cluster
state, every recorded mutation and runtime information. The default scenario
is exported when no id is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApplication()
		if err != nil {
			return err
		}
		defer application.Close()

		svc := application.Services()
		if _, err := svc.RestoreCheckpoints(); err != nil {
			return err
		}
		id := app.DefaultScenarioID
		if len(args) > 0 {
			id = args[0]
		}
		sc, ok := svc.Manager.GetContext(id)
		if !ok {
			return fmt.Errorf("scenario %q not found", id)
		}

		var data []byte
		switch formatting.OutputFormat(scenarioExportFormat) {
		case formatting.FormatJSON:
			data, err = sc.Export()
		case formatting.FormatYAML:
			data, err = sc.ExportYAML()
		default:
			return fmt.Errorf("unsupported export format %q (json, yaml)", scenarioExportFormat)
		}
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	},
}

var scenarioResetCmd = &cobra.Command{
	Use:   "reset [id]",
	Short: "Discard a saved scenario",
	Long: `Deletes the saved state of a scenario. The default scenario starts again
from the configured cluster preset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApplication()
		if err != nil {
			return err
		}
		defer application.Close()

		id := app.DefaultScenarioID
		if len(args) > 0 {
			id = args[0]
		}
		if err := application.Services().ResetScenario(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scenario %s reset\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
	scenarioCmd.AddCommand(scenarioListCmd, scenarioExportCmd, scenarioResetCmd)

	scenarioListCmd.Flags().StringVarP(&scenarioOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	scenarioExportCmd.Flags().StringVarP(&scenarioExportFormat, "format", "f", "json", "Export format (json, yaml)")
}
