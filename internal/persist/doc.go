// Package persist provides a small debounced key/value store on disk.
//
// The shell uses it to checkpoint the active scenario after commands that
// change cluster state; rapid commands collapse into a single write.
package persist
