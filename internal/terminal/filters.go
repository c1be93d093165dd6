package terminal

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"dcsim/internal/parser"
	"dcsim/internal/simulator"
)

// filter is one post-processing stage of a pipeline.
type filter func(lines []string) ([]string, int)

var grepOptions = parser.BoolFlags("i", "v", "c", "E", "F", "w")

// compileStage turns one pipeline stage into a filter. Unknown programs
// yield a command-not-found result.
func compileStage(stage string) (filter, *simulator.Result) {
	cmd := parser.ParseWith(stage, grepOptions)

	switch cmd.BaseCommand {
	case "grep", "egrep":
		return compileGrep(cmd)
	case "head", "tail":
		n, err := lineCount(cmd)
		if err != nil {
			res := simulator.Fail(simulator.ExitFailure, "%s: %v\n", cmd.BaseCommand, err)
			return nil, &res
		}
		if cmd.BaseCommand == "head" {
			return func(lines []string) ([]string, int) {
				return lines[:min(n, len(lines))], simulator.ExitOK
			}, nil
		}
		return func(lines []string) ([]string, int) {
			return lines[max(0, len(lines)-n):], simulator.ExitOK
		}, nil
	case "wc":
		return compileWC(cmd), nil
	case "":
		res := simulator.Fail(simulator.ExitUsage, "syntax error near unexpected token `|'\n")
		return nil, &res
	}
	res := notFound(cmd.BaseCommand)
	return nil, &res
}

func compileGrep(cmd parser.ParsedCommand) (filter, *simulator.Result) {
	opts, args := scanArgs(cmd, "ivcEFw", "e", "regexp")
	pattern := cmd.FlagString("e", "regexp")
	if pattern == "" {
		if len(args) == 0 {
			res := simulator.Fail(simulator.ExitUsage, "Usage: grep [OPTION]... PATTERNS [FILE]...\n")
			return nil, &res
		}
		pattern = args[0]
	}
	if opts['F'] {
		pattern = regexp.QuoteMeta(pattern)
	}
	if opts['w'] {
		pattern = `\b(?:` + pattern + `)\b`
	}
	if opts['i'] {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}

	return func(lines []string) ([]string, int) {
		var out []string
		for _, l := range lines {
			if re.MatchString(l) != opts['v'] {
				out = append(out, l)
			}
		}
		code := simulator.ExitOK
		if len(out) == 0 {
			code = simulator.ExitFailure
		}
		if opts['c'] {
			return []string{strconv.Itoa(len(out))}, code
		}
		return out, code
	}, nil
}

// lineCount reads -n N, -nN, --lines N, --lines=N or the legacy -N form.
// The last occurrence wins. The default is 10.
func lineCount(cmd parser.ParsedCommand) (int, error) {
	raw, set := "", false
	toks := parser.Tokenize(cmd.Raw)
	for i := 1; i < len(toks); i++ {
		tok := toks[i]
		switch {
		case tok == "--":
			i = len(toks)
		case tok == "-n" || tok == "--lines":
			if i+1 >= len(toks) {
				return 0, fmt.Errorf("option requires an argument -- 'n'")
			}
			raw, set = toks[i+1], true
			i++
		case strings.HasPrefix(tok, "--lines="):
			raw, set = strings.TrimPrefix(tok, "--lines="), true
		case strings.HasPrefix(tok, "-n"):
			raw, set = tok[2:], true
		case len(tok) > 1 && tok[0] == '-' && isDigits(tok[1:]):
			raw, set = tok[1:], true
		}
	}
	if !set {
		return 10, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number of lines: '%s'", raw)
	}
	return n, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func compileWC(cmd parser.ParsedCommand) filter {
	opts, _ := scanArgs(cmd, "lwc")
	return func(lines []string) ([]string, int) {
		words, chars := 0, 0
		for _, l := range lines {
			words += len(strings.Fields(l))
			chars += len(l) + 1
		}
		var fields []string
		all := !opts['l'] && !opts['w'] && !opts['c']
		if all || opts['l'] {
			fields = append(fields, strconv.Itoa(len(lines)))
		}
		if all || opts['w'] {
			fields = append(fields, strconv.Itoa(words))
		}
		if all || opts['c'] {
			fields = append(fields, strconv.Itoa(chars))
		}
		return []string{strings.Join(fields, " ")}, simulator.ExitOK
	}
}

// scanArgs walks the words after the program name in the order they were
// typed. Clusters of single-letter switches such as -iv are expanded into
// set. Flags named in valued take the following word as their value; every
// other bare word is an operand.
func scanArgs(cmd parser.ParsedCommand, letters string, valued ...string) (set map[rune]bool, operands []string) {
	set = make(map[rune]bool)
	toks := parser.Tokenize(cmd.Raw)
	for i := 1; i < len(toks); i++ {
		tok := toks[i]
		if tok == "--" {
			operands = append(operands, toks[i+1:]...)
			break
		}
		if !parser.IsFlag(tok) {
			operands = append(operands, tok)
			continue
		}
		name := strings.TrimLeft(tok, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if slices.Contains(valued, name) {
			i++
			continue
		}
		if !strings.HasPrefix(tok, "--") && strings.Trim(name, letters) == "" {
			for _, r := range name {
				set[r] = true
			}
		}
	}
	return set, operands
}

// applyPipeline runs output through the stages in order. The exit code is
// the last stage's.
func applyPipeline(output string, stages []string) simulator.Result {
	filters := make([]filter, 0, len(stages))
	for _, s := range stages {
		f, failed := compileStage(s)
		if failed != nil {
			return *failed
		}
		filters = append(filters, f)
	}

	lines := splitLines(output)
	code := simulator.ExitOK
	for _, f := range filters {
		lines, code = f(lines)
	}
	return simulator.Result{Output: joinLines(lines), ExitCode: code}
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func notFound(name string) simulator.Result {
	return simulator.Fail(simulator.ExitNotFound, "%s: command not found\n", name)
}
