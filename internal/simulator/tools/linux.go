package tools

import (
	"fmt"
	"os"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/internal/simulator"
)

type linuxProgram int

const (
	progHostname linuxProgram = iota
	progPwd
	progWhoami
	progUptime
	progEcho
	progDmesg
	progClear
	progUnknown
)

func parseLinuxProgram(s string) linuxProgram {
	switch s {
	case "hostname":
		return progHostname
	case "pwd":
		return progPwd
	case "whoami":
		return progWhoami
	case "uptime":
		return progUptime
	case "echo":
		return progEcho
	case "dmesg":
		return progDmesg
	case "clear":
		return progClear
	default:
		return progUnknown
	}
}

// Linux simulates a handful of coreutils and util-linux programs.
type Linux struct {
	simulator.Base
}

// NewLinux creates the Linux utilities simulator.
func NewLinux() *Linux {
	return &Linux{Base: simulator.Base{Meta: simulator.Metadata{
		Name:        "linux",
		Version:     "5.15.0-91-generic",
		Description: "Basic Linux utilities",
		Commands:    []string{"hostname", "pwd", "whoami", "uptime", "echo", "dmesg", "clear"},
		Usage:       "Available: hostname, pwd, whoami, uptime, echo, dmesg, clear\n",
	}}}
}

// Execute implements simulator.Simulator.
func (l *Linux) Execute(cmd parser.ParsedCommand, cmdCtx simulator.CommandContext, state simulator.StateAccessor) simulator.Result {
	prog := parseLinuxProgram(cmd.BaseCommand)
	if prog != progEcho {
		if r, done := l.Preflight(cmd); done {
			return r
		}
	}

	switch prog {
	case progHostname:
		node, ok := simulator.ResolveNode(state, cmdCtx, "")
		if !ok {
			return simulator.OK("localhost\n")
		}
		return simulator.OK(node.Hostname + "\n")
	case progPwd:
		if cmdCtx.CurrentPath == "" {
			return simulator.OK("/root\n")
		}
		return simulator.OK(cmdCtx.CurrentPath + "\n")
	case progWhoami:
		if u := cmdCtx.Env("USER"); u != "" {
			return simulator.OK(u + "\n")
		}
		return simulator.OK("root\n")
	case progUptime:
		node, _ := simulator.ResolveNode(state, cmdCtx, "")
		return simulator.OK(uptime(node))
	case progEcho:
		return echo(cmd, cmdCtx)
	case progDmesg:
		node, ok := simulator.ResolveNode(state, cmdCtx, "")
		if !ok {
			return simulator.Fail(simulator.ExitFailure, "dmesg: read kernel buffer failed: Operation not permitted\n")
		}
		return simulator.OK(dmesg(node, cmd.HasFlag("T", "ctime")))
	case progClear:
		return simulator.OK("\x1b[H\x1b[2J")
	default:
		return simulator.Fail(simulator.ExitNotFound, "%s: command not found\n", cmd.BaseCommand)
	}
}

func uptime(node cluster.Node) string {
	util := 0.0
	for _, g := range node.GPUs {
		util += g.Utilization
	}
	load := 0.0
	if len(node.GPUs) > 0 {
		load = util / float64(len(node.GPUs)) / 100 * float64(max(node.CPUCount, 1)) / 8
	}
	return fmt.Sprintf(" 10:00:00 up 12 days,  3:14,  1 user,  load average: %.2f, %.2f, %.2f\n", load, load*0.9, load*0.8)
}

// echo re-tokenizes the raw line because the generic parser would treat the
// word after -n as that flag's value.
func echo(cmd parser.ParsedCommand, cmdCtx simulator.CommandContext) simulator.Result {
	words := parser.Tokenize(cmd.Raw)
	if len(words) > 0 {
		words = words[1:]
	}
	newline := true
	for len(words) > 0 && (words[0] == "-n" || words[0] == "-e" || words[0] == "-ne" || words[0] == "-en") {
		if strings.Contains(words[0], "n") {
			newline = false
		}
		words = words[1:]
	}

	out := os.Expand(strings.Join(words, " "), func(key string) string {
		return cmdCtx.Env(key)
	})
	if newline {
		out += "\n"
	}
	return simulator.OK(out)
}

func dmesg(node cluster.Node, human bool) string {
	var b strings.Builder
	b.WriteString("[    0.000000] Linux version 5.15.0-91-generic (buildd@lcy02-amd64-045) (gcc 11.4.0)\n")
	b.WriteString("[    0.000000] Command line: BOOT_IMAGE=/vmlinuz-5.15.0-91-generic root=/dev/md0 ro\n")
	fmt.Fprintf(&b, "[    5.812331] nvidia: loading out-of-tree module taints kernel.\n")
	fmt.Fprintf(&b, "[    5.901245] NVRM: loading NVIDIA UNIX x86_64 Kernel Module  %s\n", node.DriverVer)
	for _, h := range node.HCAs {
		fmt.Fprintf(&b, "[    6.104512] mlx5_core %s: firmware version: %s\n", h.Name, h.FirmwareVersion)
	}

	for _, g := range node.GPUs {
		bus := strings.TrimPrefix(g.PCIBusID, "0000")
		for _, x := range g.XIDErrors {
			stamp := fmt.Sprintf("%12.6f", float64(x.Timestamp.Unix()%1_000_000)+float64(x.Timestamp.Nanosecond())/1e9)
			if human {
				stamp = x.Timestamp.UTC().Format("Mon Jan _2 15:04:05 2006")
			}
			fmt.Fprintf(&b, "[%s] NVRM: Xid (PCI:%s): %d, pid=0, name=, %s\n", stamp, strings.ToLower(bus), x.Code, x.Message)
		}
	}
	return b.String()
}
