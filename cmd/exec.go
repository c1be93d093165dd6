package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec -- <command line>",
	Short: "Run one command against the simulated cluster",
	Long: `Runs a single command line, pipes included, against the default scenario
and exits with the simulated command's exit code.

Examples:
  dcsim exec -- nvidia-smi -L
  dcsim exec -- 'nvidia-smi -q | grep -i temp'
  dcsim exec -- scontrol update nodename=node-02 state=drain reason=maint`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	res := application.Exec(commandLine(args))
	fmt.Fprint(cmd.OutOrStdout(), res.Output)
	if !res.Success() {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// commandLine rebuilds the line the user typed. A single argument is taken
// as a whole line, pipes included. Otherwise the shell has already removed
// the quotes, so words with blanks or quotes are quoted again; a key=value
// word keeps its key bare so flags and assignments still parse.
func commandLine(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	words := make([]string, len(args))
	for i, a := range args {
		words[i] = quoteWord(a)
	}
	return strings.Join(words, " ")
}

func quoteWord(w string) string {
	if w == "" {
		return `""`
	}
	if !strings.ContainsAny(w, " \t\n\"'") {
		return w
	}
	prefix := ""
	if k, v, ok := strings.Cut(w, "="); ok && k != "" && !strings.ContainsAny(k, " \t\n\"'") {
		prefix, w = k+"=", v
	}
	// Quoted spans concatenate, so a double quote is emitted inside single
	// quotes between two double-quoted runs.
	return prefix + `"` + strings.ReplaceAll(w, `"`, `"'"'"`) + `"`
}

func init() {
	rootCmd.AddCommand(execCmd)
}
