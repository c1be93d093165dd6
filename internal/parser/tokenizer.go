package parser

import (
	"strings"
	"unicode"
)

type token struct {
	value string
	// quoted is set when the token starts with a quote; such tokens are
	// never classified as flags.
	quoted bool
}

// Tokenize splits line into words. Single and double quoted spans are kept
// as one word with the quotes removed. An unterminated quote extends to the
// end of the line.
func Tokenize(line string) []string {
	toks := tokenize(line)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.value
	}
	return out
}

func tokenize(line string) []token {
	var (
		toks    []token
		cur     strings.Builder
		inToken bool
		quoted  bool
		quote   rune
	)

	flush := func() {
		if inToken {
			toks = append(toks, token{value: cur.String(), quoted: quoted})
		}
		cur.Reset()
		inToken = false
		quoted = false
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			if !inToken {
				quoted = true
			}
			inToken = true
			quote = r
		case unicode.IsSpace(r):
			flush()
		default:
			inToken = true
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

// SplitPipeline splits raw on `|` characters that are not inside quotes.
// The first segment is returned as head and the rest as trimmed stages.
func SplitPipeline(raw string) (head string, stages []string) {
	var (
		segs  []string
		start int
		quote rune
	)
	for i, r := range raw {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '|':
			segs = append(segs, raw[start:i])
			start = i + 1
		}
	}
	segs = append(segs, raw[start:])

	head = strings.TrimSpace(segs[0])
	for _, s := range segs[1:] {
		stages = append(stages, strings.TrimSpace(s))
	}
	return head, stages
}
