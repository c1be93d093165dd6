// Package scenario isolates simulated cluster state per learning session.
//
// A Manager holds any number of Contexts keyed by scenario id. Each Context
// deep-copies its seed snapshot on creation and records every change in an
// append-only mutation log. Mutating a missing node or GPU, or mutating a
// readonly context, changes nothing and records nothing; the returned
// Outcome tells interested callers which case applied.
//
//	mgr := scenario.NewManager(nil)
//	ctx, err := mgr.CreateContext("lab-1", cluster.MustPreset("small", 2))
//	ctx.UpdateGPU("node-01", 0, cluster.GPUUpdate{Temperature: cluster.Ptr(90.0)}, "stress")
package scenario
