// Package cluster defines the simulated data-center state: nodes, GPUs,
// InfiniBand adapters and the Slurm view of them.
//
// Every type carries an explicit DeepCopy so that scenario contexts can own
// private copies of a snapshot without sharing any slice with it. Presets
// build reproducible clusters; hardware identifiers are derived from node
// ids with name-based UUIDs and never change between runs.
package cluster
