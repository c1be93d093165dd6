// Package parser turns a single line of terminal input into a ParsedCommand.
//
// The first bare token is the base command. Verb-like bare tokens before the
// first flag are subcommands; every other bare token is positional. Flags
// accept `--name=value`, `--name value` and `-n value`; combined short flags
// such as `-cp` stay a single key. Later duplicates overwrite earlier ones.
//
// Parsing is total and deterministic: malformed input degrades into
// positional arguments and re-parsing Raw reproduces the same command.
package parser
