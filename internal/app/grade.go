package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"dcsim/internal/scenario"
	"dcsim/internal/scoring"
	"dcsim/internal/simulator/tools"
	"dcsim/internal/terminal"
	"dcsim/pkg/logging"
)

// ReadScript reads a command script: one command per line, blank lines and
// lines starting with # are skipped.
func ReadScript(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return lines, nil
}

// Grade runs script against each challenge and returns the results in the
// order of challenges. Every challenge gets its own manager, engine and
// executor, so attempts run concurrently without sharing state.
func Grade(ctx context.Context, challenges []scoring.Challenge, script []string, defaultPreset string) ([]scoring.ChallengeResult, error) {
	results := make([]scoring.ChallengeResult, len(challenges))
	g, ctx := errgroup.WithContext(ctx)
	for i, ch := range challenges {
		i, ch := i, ch
		g.Go(func() error {
			r, err := gradeOne(ctx, ch, script, defaultPreset)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func gradeOne(ctx context.Context, ch scoring.Challenge, script []string, defaultPreset string) (scoring.ChallengeResult, error) {
	mgr := scenario.NewManager(nil)
	sc, err := ch.Prepare(mgr, defaultPreset)
	if err != nil {
		return scoring.ChallengeResult{}, err
	}
	if err := mgr.SetActiveContext(sc.ID()); err != nil {
		return scoring.ChallengeResult{}, err
	}

	engine := scoring.NewEngine(nil)
	engine.SetState(sc)
	engine.StartChallenge(ch)
	exec := terminal.NewExecutor(terminal.Options{
		Registry: tools.NewRegistry(),
		Manager:  mgr,
		Engine:   engine,
	})

	for _, line := range script {
		if err := ctx.Err(); err != nil {
			return scoring.ChallengeResult{}, err
		}
		res := exec.Run(line)
		logging.Debug("Grade", "[%s] %q exited %d", ch.ID, line, res.ExitCode)
	}

	result, _ := engine.CompleteChallenge()
	return result, nil
}
