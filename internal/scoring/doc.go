// Package scoring grades practical challenges.
//
// An Engine follows one running Challenge and turns the stream of
// (command, output) pairs typed at the terminal into per-objective credit.
// Objectives match the command line, the command output, or a boolean
// expression over the live scenario state (see StateEnv). Completed
// objectives never regress. Time bonuses and hint penalties are computed
// when the attempt ends; exams aggregate several challenge results.
//
// A Library loads challenge and exam definitions from YAML files, renders
// their {{ .var }} templates and can watch the directory for changes.
package scoring
