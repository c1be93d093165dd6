package parser

// FlagValue is the value of one parsed flag. A flag given without a value
// (for example `-L`) has HasValue false and behaves as boolean true.
type FlagValue struct {
	Value    string `json:"value,omitempty"`
	HasValue bool   `json:"hasValue"`
}

// String returns the flag's value, or "true" for a valueless flag.
func (f FlagValue) String() string {
	if !f.HasValue {
		return "true"
	}
	return f.Value
}

// ParsedCommand is the structured form of one input line.
type ParsedCommand struct {
	// BaseCommand is the program name, empty for a blank line
	BaseCommand string `json:"baseCommand"`
	// Subcommands are verb-like bare tokens preceding the first flag
	Subcommands []string `json:"subcommands"`
	// PositionalArgs are the remaining bare tokens
	PositionalArgs []string `json:"positionalArgs"`
	// Flags maps flag names without leading dashes to their values
	Flags map[string]FlagValue `json:"flags"`
	// Raw is the original line, untouched
	Raw string `json:"raw"`
}

// Options tunes flag arity during parsing.
type Options struct {
	// BoolFlags names flags (without dashes) that never consume the
	// following token as their value.
	BoolFlags map[string]bool
}

// BoolFlags builds an Options declaring the given names as boolean.
func BoolFlags(names ...string) Options {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return Options{BoolFlags: set}
}

// Flag returns the flag with the given name.
func (c ParsedCommand) Flag(name string) (FlagValue, bool) {
	v, ok := c.Flags[name]
	return v, ok
}

// HasFlag reports whether any of the given flag names is present.
func (c ParsedCommand) HasFlag(names ...string) bool {
	for _, n := range names {
		if _, ok := c.Flags[n]; ok {
			return true
		}
	}
	return false
}

// FlagString returns the value of the first of names that is present with a
// value. It returns "" when none is.
func (c ParsedCommand) FlagString(names ...string) string {
	for _, n := range names {
		if v, ok := c.Flags[n]; ok && v.HasValue {
			return v.Value
		}
	}
	return ""
}

// Subcommand returns the first subcommand or "".
func (c ParsedCommand) Subcommand() string {
	if len(c.Subcommands) == 0 {
		return ""
	}
	return c.Subcommands[0]
}

// Operands returns the subcommands after the first followed by the
// positional arguments, as a fresh slice.
func (c ParsedCommand) Operands() []string {
	var out []string
	if len(c.Subcommands) > 1 {
		out = append(out, c.Subcommands[1:]...)
	}
	return append(out, c.PositionalArgs...)
}

// IsEmpty reports whether the line held no command.
func (c ParsedCommand) IsEmpty() bool {
	return c.BaseCommand == "" && len(c.Flags) == 0 && len(c.PositionalArgs) == 0
}
