package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dcsim/internal/app"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeGradeFailed indicates a graded exam was not passed.
	ExitCodeGradeFailed = 2
)

// ExitError carries an exit code out of a command without printing an
// error message. exec uses it to pass through the simulated exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command for the dcsim application.
var rootCmd = &cobra.Command{
	Use:   "dcsim",
	Short: "Simulated data-center GPU cluster terminal",
	Long: `dcsim simulates the terminal of a GPU cluster administrator. Commands such as
nvidia-smi, dcgmi, sinfo, scontrol, ibstat and docker produce realistic output
from a simulated cluster, and changes made through them persist for the
session. Challenges grade what you type against objectives.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:  true,
	SilenceErrors: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dcsim version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCodeError
}

// commandContext returns the command's context, or Background when the
// command was run without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newApplication bootstraps the application from the global flags.
func newApplication() (*app.Application, error) {
	application, err := app.NewApplication(app.NewConfig(configPath, logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default $DCSIM_CONFIG or ~/.config/dcsim)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config.yaml)")

	rootCmd.AddCommand(newVersionCmd())
}
