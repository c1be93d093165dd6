package terminal

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"dcsim/internal/formatting"
	"dcsim/internal/parser"
	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
)

// builtin is a command handled by the session itself.
type builtin struct {
	run    func(e *Executor, cmd parser.ParsedCommand) simulator.Result
	usage  string
	graded bool
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"cd":      {run: (*Executor).cd, usage: "cd [dir]", graded: true},
		"export":  {run: (*Executor).export, usage: "export [NAME=value]...", graded: true},
		"ssh":     {run: (*Executor).ssh, usage: "ssh <node>", graded: true},
		"exit":    {run: (*Executor).exit, usage: "exit", graded: true},
		"history": {run: (*Executor).history, usage: "history", graded: true},
		"help":    {run: (*Executor).help, usage: "help"},
		"hint":    {run: (*Executor).hint, usage: "hint [n]"},
		"status":  {run: (*Executor).status, usage: "status"},
		"submit":  {run: (*Executor).submit, usage: "submit"},
	}
}

func (e *Executor) cd(cmd parser.ParsedCommand) simulator.Result {
	args := words(cmd)
	target := DefaultPath
	if len(args) > 0 && args[0] != "~" {
		target = strings.Replace(args[0], "~", DefaultPath, 1)
	}
	if !path.IsAbs(target) {
		target = path.Join(e.cmdCtx.CurrentPath, target)
	}
	e.cmdCtx.CurrentPath = path.Clean(target)
	return simulator.OK("")
}

func (e *Executor) export(cmd parser.ParsedCommand) simulator.Result {
	args := words(cmd)
	if len(args) == 0 {
		keys := make([]string, 0, len(e.cmdCtx.Environment))
		for k := range e.cmdCtx.Environment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "declare -x %s=%q\n", k, e.cmdCtx.Environment[k])
		}
		return simulator.OK(b.String())
	}
	for _, arg := range args {
		name, value, _ := strings.Cut(arg, "=")
		if name == "" {
			return simulator.Fail(simulator.ExitFailure, "bash: export: `%s': not a valid identifier\n", arg)
		}
		e.cmdCtx.Environment[name] = value
	}
	return simulator.OK("")
}

func (e *Executor) ssh(cmd parser.ParsedCommand) simulator.Result {
	args := words(cmd)
	if len(args) == 0 {
		return simulator.Fail(simulator.ExitUsage, "usage: ssh destination\n")
	}
	host := args[0]
	if _, h, ok := strings.Cut(host, "@"); ok {
		host = h
	}
	sc := e.opts.Manager.ActiveContext()
	if sc == nil {
		return simulator.Fail(255, "ssh: Could not resolve hostname %s: Name or service not known\n", host)
	}
	if _, ok := sc.Node(host); !ok {
		return simulator.Fail(255, "ssh: Could not resolve hostname %s: Name or service not known\n", host)
	}
	e.cmdCtx.CurrentNode = host
	e.cmdCtx.CurrentPath = DefaultPath
	return simulator.OK("")
}

// exit returns to the home node from an ssh session. At the home node it
// ends the session; see Exited.
func (e *Executor) exit(parser.ParsedCommand) simulator.Result {
	if e.cmdCtx.CurrentNode == e.homeNode {
		e.exited = true
		return simulator.OK("logout\n")
	}
	node := e.cmdCtx.CurrentNode
	e.cmdCtx.CurrentNode = e.homeNode
	e.cmdCtx.CurrentPath = DefaultPath
	return simulator.OK(fmt.Sprintf("logout\nConnection to %s closed.\n", node))
}

func (e *Executor) history(parser.ParsedCommand) simulator.Result {
	var b strings.Builder
	for i, line := range e.cmdCtx.History {
		fmt.Fprintf(&b, "%5d  %s\n", i+1, line)
	}
	return simulator.OK(b.String())
}

func (e *Executor) help(parser.ParsedCommand) simulator.Result {
	var b strings.Builder
	b.WriteString("Simulated tools:\n")
	for _, sim := range e.opts.Registry.Simulators() {
		meta := sim.Metadata()
		fmt.Fprintf(&b, "  %-24s %s\n", strings.Join(meta.Commands, ", "), meta.Description)
	}
	b.WriteString("\nShell builtins:\n")
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", builtins[name].usage)
	}
	return simulator.OK(b.String())
}

func (e *Executor) hint(cmd parser.ParsedCommand) simulator.Result {
	if e.opts.Engine == nil || !e.opts.Engine.Active() {
		return simulator.Fail(simulator.ExitFailure, "hint: no challenge in progress\n")
	}
	k := 1
	if args := words(cmd); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return simulator.Fail(simulator.ExitUsage, "hint: invalid hint number '%s'\n", args[0])
		}
		k = n
	}
	text, ok := e.opts.Engine.RequestHint(k - 1)
	if !ok {
		return simulator.Fail(simulator.ExitFailure, "hint: no hint %d for this challenge\n", k)
	}
	return simulator.OK(fmt.Sprintf("Hint %d: %s\n", k, text))
}

func (e *Executor) status(parser.ParsedCommand) simulator.Result {
	if e.opts.Engine == nil {
		return simulator.Fail(simulator.ExitFailure, "status: no challenge in progress\n")
	}
	ch, ok := e.opts.Engine.Challenge()
	progress, running := e.opts.Engine.Progress()
	if !ok || !running {
		return simulator.Fail(simulator.ExitFailure, "status: no challenge in progress\n")
	}
	return renderChallenge(ch, progress)
}

func (e *Executor) submit(parser.ParsedCommand) simulator.Result {
	if e.opts.Engine == nil {
		return simulator.Fail(simulator.ExitFailure, "submit: no challenge in progress\n")
	}
	ch, _ := e.opts.Engine.Challenge()
	result, ok := e.opts.Engine.CompleteChallenge()
	if !ok {
		return simulator.Fail(simulator.ExitFailure, "submit: no challenge in progress\n")
	}
	return renderChallenge(ch, result)
}

func renderChallenge(ch scoring.Challenge, r scoring.ChallengeResult) simulator.Result {
	var b strings.Builder
	f := formatting.New(formatting.Options{Format: formatting.FormatTable})
	if err := f.ChallengeResult(&b, ch, r); err != nil {
		return simulator.Fail(simulator.ExitFailure, "failed to render result: %v\n", err)
	}
	return simulator.OK(b.String())
}

// words returns every bare token after the command name.
func words(cmd parser.ParsedCommand) []string {
	return append(append([]string{}, cmd.Subcommands...), cmd.PositionalArgs...)
}
