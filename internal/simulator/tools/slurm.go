package tools

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/internal/simulator"
)

const slurmUsage = `Usage:
  sinfo [-N] [-l] [-R] [-p partition]
  squeue [-u user] [-p partition]
  scontrol show node [name] | show job <id> | show partition
  scontrol update nodename=<name> state=<idle|resume|drain|down> [reason=<text>]
`

type slurmProgram int

const (
	progSinfo slurmProgram = iota
	progSqueue
	progScontrol
)

type scontrolVerb int

const (
	scontrolNone scontrolVerb = iota
	scontrolShow
	scontrolUpdate
	scontrolUnknown
)

func parseScontrolVerb(s string) scontrolVerb {
	switch strings.ToLower(s) {
	case "":
		return scontrolNone
	case "show":
		return scontrolShow
	case "update":
		return scontrolUpdate
	default:
		return scontrolUnknown
	}
}

// Slurm simulates the sinfo, squeue and scontrol clients.
type Slurm struct {
	simulator.Base
}

// NewSlurm creates the Slurm simulator.
func NewSlurm() *Slurm {
	return &Slurm{Base: simulator.Base{Meta: simulator.Metadata{
		Name:        "slurm",
		Version:     "23.02.7",
		Description: "Slurm workload manager clients",
		Commands:    []string{"sinfo", "squeue", "scontrol"},
		Usage:       slurmUsage,
	}}}
}

// Execute implements simulator.Simulator.
func (s *Slurm) Execute(cmd parser.ParsedCommand, _ simulator.CommandContext, state simulator.StateAccessor) simulator.Result {
	if r, done := s.Preflight(cmd); done {
		return r
	}

	c := state.Cluster()
	switch programOf(cmd.BaseCommand) {
	case progSinfo:
		return sinfo(cmd, c)
	case progSqueue:
		return squeue(cmd, c)
	default:
		return s.scontrol(cmd, c, state)
	}
}

func programOf(base string) slurmProgram {
	switch base {
	case "sinfo":
		return progSinfo
	case "squeue":
		return progSqueue
	default:
		return progScontrol
	}
}

func partitionLabel(p cluster.Partition) string {
	if p.Default {
		return p.Name + "*"
	}
	return p.Name
}

func sinfo(cmd parser.ParsedCommand, c *cluster.State) simulator.Result {
	only := cmd.FlagString("p", "partition")
	var b strings.Builder

	if cmd.HasFlag("R", "list-reasons") {
		fmt.Fprintf(&b, "%-20s %-9s %s\n", "REASON", "USER", "NODELIST")
		byReason := map[string][]string{}
		var reasons []string
		for _, n := range c.Nodes {
			if n.SlurmState != cluster.SlurmDrain && n.SlurmState != cluster.SlurmDown {
				continue
			}
			r := n.SlurmReason
			if r == "" {
				r = "Not responding"
			}
			if _, ok := byReason[r]; !ok {
				reasons = append(reasons, r)
			}
			byReason[r] = append(byReason[r], n.ID)
		}
		for _, r := range reasons {
			fmt.Fprintf(&b, "%-20s %-9s %s\n", r, "root", compressHostlist(byReason[r]))
		}
		return simulator.OK(b.String())
	}

	if cmd.HasFlag("N", "Node") {
		fmt.Fprintf(&b, "%-9s %5s %9s %6s\n", "NODELIST", "NODES", "PARTITION", "STATE")
		for _, p := range c.SlurmPartitions {
			if only != "" && p.Name != only {
				continue
			}
			for _, id := range p.Nodes {
				n := c.Node(id)
				if n == nil {
					continue
				}
				fmt.Fprintf(&b, "%-9s %5d %9s %6s\n", n.ID, 1, partitionLabel(p), n.SlurmState)
			}
		}
		return simulator.OK(b.String())
	}

	fmt.Fprintf(&b, "%-9s %5s %10s %6s %6s %s\n", "PARTITION", "AVAIL", "TIMELIMIT", "NODES", "STATE", "NODELIST")
	for _, p := range c.SlurmPartitions {
		if only != "" && p.Name != only {
			continue
		}
		byState := map[cluster.SlurmState][]string{}
		var order []cluster.SlurmState
		for _, id := range p.Nodes {
			n := c.Node(id)
			if n == nil {
				continue
			}
			if _, ok := byState[n.SlurmState]; !ok {
				order = append(order, n.SlurmState)
			}
			byState[n.SlurmState] = append(byState[n.SlurmState], n.ID)
		}
		for _, st := range order {
			fmt.Fprintf(&b, "%-9s %5s %10s %6d %6s %s\n",
				partitionLabel(p), "up", p.TimeLimit, len(byState[st]), st, compressHostlist(byState[st]))
		}
	}
	return simulator.OK(b.String())
}

func jobStateLong(st string) string {
	switch st {
	case "R":
		return "RUNNING"
	case "PD":
		return "PENDING"
	case "CG":
		return "COMPLETING"
	case "CD":
		return "COMPLETED"
	default:
		return st
	}
}

func squeue(cmd parser.ParsedCommand, c *cluster.State) simulator.Result {
	user := cmd.FlagString("u", "user")
	part := cmd.FlagString("p", "partition")

	var b strings.Builder
	fmt.Fprintf(&b, "%18s %9s %8s %8s %2s %10s %6s %s\n", "JOBID", "PARTITION", "NAME", "USER", "ST", "TIME", "NODES", "NODELIST(REASON)")
	for _, j := range c.Jobs {
		if user != "" && j.User != user || part != "" && j.Partition != part {
			continue
		}
		nodes := len(j.Nodes)
		where := compressHostlist(j.Nodes)
		if j.State == "PD" {
			nodes = max(nodes, 1)
			where = "(Resources)"
		}
		fmt.Fprintf(&b, "%18d %9s %8s %8s %2s %10s %6d %s\n",
			j.ID, j.Partition, truncate(j.Name, 8), truncate(j.User, 8), j.State, j.Elapsed, nodes, where)
	}
	return simulator.OK(b.String())
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (s *Slurm) scontrol(cmd parser.ParsedCommand, c *cluster.State, state simulator.StateAccessor) simulator.Result {
	args := cmd.Operands()
	switch parseScontrolVerb(cmd.Subcommand()) {
	case scontrolShow:
		return scontrolShowEntity(args, c)
	case scontrolUpdate:
		return scontrolUpdateNode(cmd, args, c, state)
	case scontrolNone:
		return simulator.Fail(simulator.ExitFailure, "%s", slurmUsage)
	default:
		return simulator.Fail(simulator.ExitFailure, "invalid keyword: %s\n", cmd.Subcommand())
	}
}

func scontrolShowEntity(args []string, c *cluster.State) simulator.Result {
	if len(args) == 0 {
		return simulator.Fail(simulator.ExitFailure, "too few arguments for keyword:show\n")
	}
	entity, rest := strings.ToLower(args[0]), args[1:]

	switch entity {
	case "node", "nodes":
		var targets []cluster.Node
		if len(rest) == 0 {
			targets = c.Nodes
		} else {
			ids, err := expandHostlist(rest[0])
			if err != nil {
				return simulator.Fail(simulator.ExitFailure, "Invalid node name specified\n")
			}
			for _, id := range ids {
				n := c.Node(id)
				if n == nil {
					return simulator.Fail(simulator.ExitFailure, "Node %s not found\n", id)
				}
				targets = append(targets, *n)
			}
		}
		var b strings.Builder
		for _, n := range targets {
			b.WriteString(formatNode(n, c))
			b.WriteString("\n")
		}
		return simulator.OK(b.String())

	case "job", "jobs":
		var b strings.Builder
		for _, j := range c.Jobs {
			if len(rest) > 0 && strconv.Itoa(j.ID) != rest[0] {
				continue
			}
			b.WriteString(formatJob(j))
			b.WriteString("\n")
		}
		if b.Len() == 0 && len(rest) > 0 {
			return simulator.Fail(simulator.ExitFailure, "slurm_load_jobs error: Invalid job id specified\n")
		}
		if b.Len() == 0 {
			return simulator.OK("No jobs in the system\n")
		}
		return simulator.OK(b.String())

	case "partition", "partitions":
		var b strings.Builder
		for _, p := range c.SlurmPartitions {
			if len(rest) > 0 && p.Name != rest[0] {
				continue
			}
			fmt.Fprintf(&b, "PartitionName=%s\n   Default=%s MaxTime=%s State=UP\n   Nodes=%s\n   TotalNodes=%d\n\n",
				p.Name, yesNo(p.Default), p.TimeLimit, compressHostlist(p.Nodes), len(p.Nodes))
		}
		if b.Len() == 0 {
			return simulator.Fail(simulator.ExitFailure, "Partition %s not found\n", strings.Join(rest, " "))
		}
		return simulator.OK(b.String())
	}
	return simulator.Fail(simulator.ExitFailure, "invalid entity:%s for keyword:show\n", args[0])
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func formatNode(n cluster.Node, c *cluster.State) string {
	var parts []string
	for _, p := range c.SlurmPartitions {
		for _, id := range p.Nodes {
			if id == n.ID {
				parts = append(parts, p.Name)
			}
		}
	}
	alloc := 0
	if n.SlurmState == cluster.SlurmAlloc {
		alloc = n.CPUCount
	}
	var b strings.Builder
	fmt.Fprintf(&b, "NodeName=%s Arch=x86_64 CoresPerSocket=%d\n", n.ID, n.CPUCount/4)
	fmt.Fprintf(&b, "   CPUAlloc=%d CPUTot=%d CPULoad=0.00\n", alloc, n.CPUCount)
	fmt.Fprintf(&b, "   Gres=gpu:%d\n", len(n.GPUs))
	fmt.Fprintf(&b, "   NodeAddr=%s NodeHostName=%s\n", n.Hostname, n.Hostname)
	fmt.Fprintf(&b, "   RealMemory=%d AllocMem=0 FreeMem=%d Sockets=2 Boards=1\n", n.MemoryGB*1024, n.MemoryGB*1024)
	fmt.Fprintf(&b, "   State=%s ThreadsPerCore=2\n", strings.ToUpper(string(n.SlurmState)))
	fmt.Fprintf(&b, "   Partitions=%s\n", strings.Join(parts, ","))
	if n.SlurmReason != "" {
		fmt.Fprintf(&b, "   Reason=%s [root]\n", n.SlurmReason)
	}
	return b.String()
}

func formatJob(j cluster.Job) string {
	nodes := compressHostlist(j.Nodes)
	if nodes == "" {
		nodes = "(null)"
	}
	reason := "None"
	if j.State == "PD" {
		reason = "Resources"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "JobId=%d JobName=%s\n", j.ID, j.Name)
	fmt.Fprintf(&b, "   UserId=%s Partition=%s\n", j.User, j.Partition)
	fmt.Fprintf(&b, "   JobState=%s Reason=%s\n", jobStateLong(j.State), reason)
	fmt.Fprintf(&b, "   RunTime=%s NodeList=%s\n", j.Elapsed, nodes)
	fmt.Fprintf(&b, "   TRES=gres/gpu=%d\n", j.GPUs)
	return b.String()
}

func scontrolUpdateNode(cmd parser.ParsedCommand, args []string, c *cluster.State, state simulator.StateAccessor) simulator.Result {
	kv := keyValues(args)
	for k, v := range cmd.Flags {
		if v.HasValue {
			kv[strings.ToLower(k)] = v.Value
		}
	}

	names := kv["nodename"]
	if names == "" {
		return simulator.Fail(simulator.ExitFailure, "No valid entity in update command\n")
	}
	rawState, ok := kv["state"]
	if !ok {
		return simulator.Fail(simulator.ExitFailure, "No changes specified\n")
	}
	target, ok := cluster.ParseSlurmState(rawState)
	if !ok {
		return simulator.Fail(simulator.ExitFailure, "Invalid input: state=%s\nRequest aborted\n", rawState)
	}
	reason := kv["reason"]
	if (target == cluster.SlurmDrain || target == cluster.SlurmDown) && reason == "" {
		return simulator.Fail(simulator.ExitFailure, "You must specify a reason when DOWNING or DRAINING a node. Request denied\n")
	}

	ids, err := expandHostlist(names)
	if err != nil {
		return simulator.Fail(simulator.ExitFailure, "slurm_update error: Invalid node name specified\n")
	}
	for _, id := range ids {
		if c.Node(id) == nil {
			return simulator.Fail(simulator.ExitFailure, "slurm_update error: Invalid node name specified\n")
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if target == cluster.SlurmIdle {
			state.SetSlurmState(id, target, "", cmd.Raw)
		} else {
			state.SetSlurmState(id, target, reason, cmd.Raw)
		}
	}
	return simulator.OK("")
}
