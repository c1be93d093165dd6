package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var verbPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.:-]*$`)

// Parse turns one input line into a ParsedCommand. It never fails: tokens it
// cannot classify become positional arguments.
//
// A flag consumes the following token as its value only when that token does
// not itself look like a flag. Use ParseWith to declare boolean flags.
func Parse(line string) ParsedCommand {
	return ParseWith(line, Options{})
}

// ParseWith is Parse with explicit flag arity.
func ParseWith(line string, opts Options) ParsedCommand {
	cmd := ParsedCommand{
		Subcommands:    []string{},
		PositionalArgs: []string{},
		Flags:          map[string]FlagValue{},
		Raw:            line,
	}

	toks := tokenize(line)
	collectingSubs := true
	endOfFlags := false

	for i := 0; i < len(toks); i++ {
		tok := toks[i]

		if endOfFlags || tok.quoted || !looksLikeFlag(tok.value) {
			switch {
			case cmd.BaseCommand == "" && !tok.quoted && tok.value != "":
				cmd.BaseCommand = tok.value
			case collectingSubs && !tok.quoted && verbPattern.MatchString(tok.value):
				cmd.Subcommands = append(cmd.Subcommands, tok.value)
			default:
				if cmd.BaseCommand == "" {
					cmd.BaseCommand = tok.value
					continue
				}
				collectingSubs = false
				cmd.PositionalArgs = append(cmd.PositionalArgs, tok.value)
			}
			continue
		}

		collectingSubs = false
		if tok.value == "--" {
			endOfFlags = true
			continue
		}

		name := strings.TrimLeft(tok.value, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			cmd.Flags[name[:eq]] = FlagValue{Value: name[eq+1:], HasValue: true}
			continue
		}

		if !opts.BoolFlags[name] && i+1 < len(toks) {
			next := toks[i+1]
			if next.quoted || !looksLikeFlag(next.value) {
				cmd.Flags[name] = FlagValue{Value: next.value, HasValue: true}
				i++
				continue
			}
		}
		cmd.Flags[name] = FlagValue{}
	}

	return cmd
}

// IsFlag reports whether a bare word would be parsed as a flag.
func IsFlag(word string) bool {
	return looksLikeFlag(word)
}

// looksLikeFlag reports whether s is shaped like a flag. A lone dash and
// negative numbers are values.
func looksLikeFlag(s string) bool {
	if len(s) < 2 || s[0] != '-' {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	return true
}
