package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ParsedCommand
	}{
		{
			name: "empty line",
			line: "",
			want: ParsedCommand{Subcommands: []string{}, PositionalArgs: []string{}, Flags: map[string]FlagValue{}},
		},
		{
			name: "whitespace only",
			line: "   \t ",
			want: ParsedCommand{Subcommands: []string{}, PositionalArgs: []string{}, Flags: map[string]FlagValue{}, Raw: "   \t "},
		},
		{
			name: "base only",
			line: "nvidia-smi",
			want: ParsedCommand{BaseCommand: "nvidia-smi", Subcommands: []string{}, PositionalArgs: []string{}, Flags: map[string]FlagValue{}, Raw: "nvidia-smi"},
		},
		{
			name: "last duplicate wins",
			line: "nvidia-smi -i 0 -i 1",
			want: ParsedCommand{
				BaseCommand:    "nvidia-smi",
				Subcommands:    []string{},
				PositionalArgs: []string{},
				Flags:          map[string]FlagValue{"i": {Value: "1", HasValue: true}},
				Raw:            "nvidia-smi -i 0 -i 1",
			},
		},
		{
			name: "consecutive flags are boolean",
			line: "cmd --flag1 --flag2",
			want: ParsedCommand{
				BaseCommand:    "cmd",
				Subcommands:    []string{},
				PositionalArgs: []string{},
				Flags:          map[string]FlagValue{"flag1": {}, "flag2": {}},
				Raw:            "cmd --flag1 --flag2",
			},
		},
		{
			name: "subcommands then flag",
			line: "dcgmi diag -r 3",
			want: ParsedCommand{
				BaseCommand:    "dcgmi",
				Subcommands:    []string{"diag"},
				PositionalArgs: []string{},
				Flags:          map[string]FlagValue{"r": {Value: "3", HasValue: true}},
				Raw:            "dcgmi diag -r 3",
			},
		},
		{
			name: "equals form and positional",
			line: "nvidia-smi --query-gpu=name,temperature.gpu --format=csv extra",
			want: ParsedCommand{
				BaseCommand:    "nvidia-smi",
				Subcommands:    []string{},
				PositionalArgs: []string{"extra"},
				Flags: map[string]FlagValue{
					"query-gpu": {Value: "name,temperature.gpu", HasValue: true},
					"format":    {Value: "csv", HasValue: true},
				},
				Raw: "nvidia-smi --query-gpu=name,temperature.gpu --format=csv extra",
			},
		},
		{
			name: "combined short flags stay one key",
			line: "ls -cp",
			want: ParsedCommand{
				BaseCommand:    "ls",
				Subcommands:    []string{},
				PositionalArgs: []string{},
				Flags:          map[string]FlagValue{"cp": {}},
				Raw:            "ls -cp",
			},
		},
		{
			name: "quoted span is one positional token",
			line: `echo "hello   world" 'x y'`,
			want: ParsedCommand{
				BaseCommand:    "echo",
				Subcommands:    []string{},
				PositionalArgs: []string{"hello   world", "x y"},
				Flags:          map[string]FlagValue{},
				Raw:            `echo "hello   world" 'x y'`,
			},
		},
		{
			name: "unbalanced quote takes the rest of the line",
			line: `echo "unterminated --not-a-flag`,
			want: ParsedCommand{
				BaseCommand:    "echo",
				Subcommands:    []string{},
				PositionalArgs: []string{"unterminated --not-a-flag"},
				Flags:          map[string]FlagValue{},
				Raw:            `echo "unterminated --not-a-flag`,
			},
		},
		{
			name: "negative number is a value",
			line: "tool --offset -5",
			want: ParsedCommand{
				BaseCommand:    "tool",
				Subcommands:    []string{},
				PositionalArgs: []string{},
				Flags:          map[string]FlagValue{"offset": {Value: "-5", HasValue: true}},
				Raw:            "tool --offset -5",
			},
		},
		{
			name: "lone dash is positional",
			line: "cat -",
			want: ParsedCommand{
				BaseCommand:    "cat",
				Subcommands:    []string{},
				PositionalArgs: []string{"-"},
				Flags:          map[string]FlagValue{},
				Raw:            "cat -",
			},
		},
		{
			name: "double dash ends flags",
			line: "echo -- -n",
			want: ParsedCommand{
				BaseCommand:    "echo",
				Subcommands:    []string{},
				PositionalArgs: []string{"-n"},
				Flags:          map[string]FlagValue{},
				Raw:            "echo -- -n",
			},
		},
		{
			name: "non-verb token ends subcommands",
			line: "scontrol update nodename=node-01 state=drain",
			want: ParsedCommand{
				BaseCommand:    "scontrol",
				Subcommands:    []string{"update"},
				PositionalArgs: []string{"nodename=node-01", "state=drain"},
				Flags:          map[string]FlagValue{},
				Raw:            "scontrol update nodename=node-01 state=drain",
			},
		},
		{
			name: "quoted flag value",
			line: `scontrol --reason "GPU fault"`,
			want: ParsedCommand{
				BaseCommand:    "scontrol",
				Subcommands:    []string{},
				PositionalArgs: []string{},
				Flags:          map[string]FlagValue{"reason": {Value: "GPU fault", HasValue: true}},
				Raw:            `scontrol --reason "GPU fault"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.line)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	lines := []string{
		"nvidia-smi -q -i 0",
		`grep -i "xid 79"`,
		"scontrol show node node-01",
		`broken "quote -x --y=z`,
		"",
	}
	for _, line := range lines {
		first := Parse(line)
		if diff := cmp.Diff(first, Parse(line)); diff != "" {
			t.Errorf("Parse(%q) not deterministic:\n%s", line, diff)
		}
		if diff := cmp.Diff(first, Parse(first.Raw)); diff != "" {
			t.Errorf("re-parsing Raw of %q changed result:\n%s", line, diff)
		}
	}
}

func TestParseWithBoolFlags(t *testing.T) {
	heuristic := Parse("grep -i error")
	assert.Equal(t, "error", heuristic.FlagString("i"))
	assert.Empty(t, heuristic.PositionalArgs)

	declared := ParseWith("grep -i error", BoolFlags("i", "v"))
	v, ok := declared.Flag("i")
	require.True(t, ok)
	assert.False(t, v.HasValue)
	assert.Equal(t, "true", v.String())
	assert.Equal(t, []string{"error"}, declared.PositionalArgs)
}

func TestHelpers(t *testing.T) {
	cmd := Parse("scontrol show node node-01 --details")

	assert.Equal(t, "show", cmd.Subcommand())
	assert.Equal(t, []string{"node", "node-01"}, cmd.Operands())
	assert.True(t, cmd.HasFlag("x", "details"))
	assert.False(t, cmd.HasFlag("x"))
	assert.Equal(t, "", cmd.FlagString("details"))
	assert.False(t, cmd.IsEmpty())
	assert.True(t, Parse("  ").IsEmpty())
	assert.Equal(t, "", Parse("").Subcommand())

	assert.True(t, IsFlag("-iv"))
	assert.True(t, IsFlag("--lines=3"))
	assert.False(t, IsFlag("-"))
	assert.False(t, IsFlag("-5"))
	assert.False(t, IsFlag("node-01"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "--x=y z"}, Tokenize(`a "b c" --x="y z"`))
	assert.Equal(t, []string{}, Tokenize("   "))
}

func TestSplitPipeline(t *testing.T) {
	head, stages := SplitPipeline(`nvidia-smi -q | grep -i "a|b" | wc -l`)
	assert.Equal(t, "nvidia-smi -q", head)
	assert.Equal(t, []string{`grep -i "a|b"`, "wc -l"}, stages)

	head, stages = SplitPipeline("sinfo")
	assert.Equal(t, "sinfo", head)
	assert.Nil(t, stages)
}
