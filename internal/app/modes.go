package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"dcsim/internal/simulator"
	"dcsim/internal/terminal"
	"dcsim/pkg/logging"
)

// runShell runs the interactive terminal until the user exits or ctx is
// cancelled. The sampler runs for the lifetime of the shell and the
// challenge library is reloaded when its files change.
func runShell(ctx context.Context, config *Config, services *Services, challengeID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if challengeID != "" {
		ch, err := services.StartChallenge(challengeID)
		if err != nil {
			return err
		}
		fmt.Printf("Challenge %s: %s\n%s\n", ch.ID, ch.Title, strings.TrimSpace(ch.Description))
		fmt.Println("Type 'hint' for a hint, 'status' for progress and 'submit' when done.")
	}

	if services.Sampler != nil {
		services.Sampler.Start()
		defer services.Sampler.Stop()
	}

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		watchLibrary(ctx, services)
	}()
	defer func() {
		cancel()
		<-watchDone
	}()

	exec := services.NewExecutor(func(done []string) {
		fmt.Printf("✓ objective completed: %s\n", strings.Join(done, ", "))
	})
	repl := terminal.NewREPL(exec, config.Settings.Prompt, config.Settings.HistoryFile)
	return repl.Run(ctx)
}

// watchLibrary reloads the challenge library on file changes until ctx is
// done. It returns at once when there is no challenge directory.
func watchLibrary(ctx context.Context, services *Services) {
	dir := services.Library.Dir()
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); err != nil {
		return
	}
	err := services.Library.Watch(ctx, func(err error) {
		if err != nil {
			logging.Warn("Shell", "Challenge reload failed: %v", err)
		}
	})
	if err != nil {
		logging.Warn("Shell", "Challenge watcher stopped: %v", err)
	}
}

// runOnce executes one line against the active scenario.
func runOnce(services *Services, line string) simulator.Result {
	return services.NewExecutor(nil).Run(line)
}
