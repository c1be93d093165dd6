// Package metrics simulates live GPU telemetry.
//
// A Sampler runs one background loop per scenario context. Each tick it
// nudges temperature, utilization and power draw of every healthy GPU
// through the context's regular mutation API, recorded with the command
// "metrics-sampler".
package metrics
