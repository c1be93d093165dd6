package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"dcsim/pkg/logging"
)

// REPL is the interactive front end of an Executor.
type REPL struct {
	exec        *Executor
	prompt      string
	historyFile string
	rl          *readline.Instance
}

// NewREPL creates a REPL. prompt may contain %s for the current node.
// An empty historyFile disables persistent history.
func NewREPL(exec *Executor, prompt, historyFile string) *REPL {
	return &REPL{exec: exec, prompt: prompt, historyFile: historyFile}
}

func (r *REPL) createCompleter() *readline.PrefixCompleter {
	words := r.exec.Completions()
	sort.Strings(words)
	items := make([]readline.PrefixCompleterInterface, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		items = append(items, readline.PcItem(w))
	}
	return readline.NewPrefixCompleter(items...)
}

// Run reads lines until exit, EOF or ctx is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              r.exec.Prompt(r.prompt),
		HistoryFile:         r.historyFile,
		AutoComplete:        r.createCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rl.Close()
		case <-done:
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if (input == "quit" || input == "logout") && !r.exec.Remote() {
			return nil
		}

		res := r.exec.Run(input)
		fmt.Fprint(rl.Stdout(), res.Output)
		if r.exec.Exited() {
			logging.Debug(subsystem, "Session ended by exit")
			return nil
		}
		rl.SetPrompt(r.exec.Prompt(r.prompt))
	}
}

// filterInput blocks Ctrl+Z, which would suspend the terminal.
func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
