package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var shellChallenge string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive simulated terminal",
	Long: `Starts an interactive shell on the first node of the simulated cluster.

The shell keeps history across sessions and completes tool names with TAB.
Use ssh <node> to move between nodes and exit to come back. Changes made to
the cluster are checkpointed to the state directory and restored the next
time the shell starts.

With --challenge the shell starts on a fresh cluster prepared for that
challenge. Use hint, status and submit inside the shell.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM)
	defer stop()

	return application.Run(ctx, shellChallenge)
}

func init() {
	rootCmd.AddCommand(shellCmd)

	shellCmd.Flags().StringVar(&shellChallenge, "challenge", "", "Start the challenge with this id")
}
