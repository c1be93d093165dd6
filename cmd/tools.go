package cmd

import (
	"github.com/spf13/cobra"

	"dcsim/internal/formatting"
	"dcsim/internal/simulator"
	"dcsim/internal/simulator/tools"
)

var toolsOutputFormat string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the simulated tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatting.ParseFormat(toolsOutputFormat)
		if err != nil {
			return err
		}
		sims := tools.NewRegistry().Simulators()
		metas := make([]simulator.Metadata, 0, len(sims))
		for _, sim := range sims {
			metas = append(metas, sim.Metadata())
		}
		return formatting.New(formatting.Options{Format: format}).Tools(cmd.OutOrStdout(), metas)
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().StringVarP(&toolsOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
}
