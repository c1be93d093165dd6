// Package terminal runs command lines typed into the simulated shell.
//
// An Executor splits a line into a head command and pipeline stages,
// handles shell builtins (cd, export, ssh, exit, history, help and the
// challenge commands hint, status and submit), dispatches everything else
// to the simulator registry against the active scenario, filters the
// output through grep, head, tail and wc stages, and finally feeds the
// command and its output to the scoring engine. Scenarios that changed are
// checkpointed to a persist.Store.
//
// REPL wraps an Executor in a readline loop with history and completion.
package terminal
