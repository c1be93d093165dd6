package tools

import (
	"fmt"
	"strconv"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/internal/simulator"
)

const ibUsage = `Usage: ibstat [-l] [<ca_name>] [portnum]
       ibstatus [<ca_name>[:port]]
`

type ibProgram int

const (
	progIbstat ibProgram = iota
	progIbstatus
)

// InfiniBand simulates ibstat and ibstatus.
type InfiniBand struct {
	simulator.Base
}

// NewInfiniBand creates the InfiniBand diagnostics simulator.
func NewInfiniBand() *InfiniBand {
	return &InfiniBand{Base: simulator.Base{Meta: simulator.Metadata{
		Name:        "infiniband",
		Version:     "5.9.0",
		Description: "InfiniBand HCA status utilities",
		Commands:    []string{"ibstat", "ibstatus"},
		Usage:       ibUsage,
	}}}
}

// Execute implements simulator.Simulator.
func (ib *InfiniBand) Execute(cmd parser.ParsedCommand, cmdCtx simulator.CommandContext, state simulator.StateAccessor) simulator.Result {
	if r, done := ib.Preflight(cmd); done {
		return r
	}

	node, ok := simulator.ResolveNode(state, cmdCtx, "")
	if !ok || len(node.HCAs) == 0 {
		return simulator.Fail(simulator.ExitFailure, "ibpanic: [%s] main: stat of IB device failed: No such file or directory\n", cmd.BaseCommand)
	}

	args := append(append([]string{}, cmd.Subcommands...), cmd.PositionalArgs...)
	prog := progIbstat
	if cmd.BaseCommand == "ibstatus" {
		prog = progIbstatus
	}

	switch prog {
	case progIbstatus:
		return ibstatus(node, args)
	default:
		if cmd.HasFlag("l", "list_of_cas") {
			var b strings.Builder
			for _, h := range node.HCAs {
				b.WriteString(h.Name + "\n")
			}
			return simulator.OK(b.String())
		}
		return ibstat(node, args)
	}
}

func selectHCAs(node cluster.Node, name string) ([]cluster.HCA, bool) {
	if name == "" {
		return node.HCAs, true
	}
	for _, h := range node.HCAs {
		if h.Name == name {
			return []cluster.HCA{h}, true
		}
	}
	return nil, false
}

func ibstat(node cluster.Node, args []string) simulator.Result {
	name, port := "", 0
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return simulator.Fail(simulator.ExitFailure, "ibpanic: [ibstat] main: invalid port number %q\n", args[1])
		}
		port = p
	}

	hcas, ok := selectHCAs(node, name)
	if !ok {
		return simulator.Fail(simulator.ExitFailure, "ibpanic: [ibstat] main: '%s' IB device can't be found: No such file or directory\n", name)
	}

	var b strings.Builder
	for _, h := range hcas {
		fmt.Fprintf(&b, "CA '%s'\n", h.Name)
		b.WriteString("\tCA type: MT4123\n")
		fmt.Fprintf(&b, "\tNumber of ports: %d\n", len(h.Ports))
		fmt.Fprintf(&b, "\tFirmware version: %s\n", h.FirmwareVersion)
		b.WriteString("\tHardware version: 0\n")
		fmt.Fprintf(&b, "\tNode GUID: %s\n", h.NodeGUID)
		fmt.Fprintf(&b, "\tSystem image GUID: %s\n", h.NodeGUID)
		for _, p := range h.Ports {
			if port != 0 && p.Number != port {
				continue
			}
			fmt.Fprintf(&b, "\tPort %d:\n", p.Number)
			fmt.Fprintf(&b, "\t\tState: %s\n", p.State)
			fmt.Fprintf(&b, "\t\tPhysical state: %s\n", p.PhysicalState)
			fmt.Fprintf(&b, "\t\tRate: %d\n", p.RateGbps)
			fmt.Fprintf(&b, "\t\tBase lid: %d\n", p.LID)
			b.WriteString("\t\tLMC: 0\n")
			b.WriteString("\t\tSM lid: 1\n")
			b.WriteString("\t\tCapability mask: 0x2651e848\n")
			fmt.Fprintf(&b, "\t\tPort GUID: %s\n", p.PortGUID)
			b.WriteString("\t\tLink layer: InfiniBand\n")
		}
	}
	return simulator.OK(b.String())
}

func ibStateCode(state string) string {
	switch strings.ToLower(state) {
	case "active":
		return "4: ACTIVE"
	case "armed":
		return "3: ARMED"
	case "init", "initializing":
		return "2: INIT"
	default:
		return "1: DOWN"
	}
}

func ibPhysCode(state string) string {
	switch strings.ToLower(state) {
	case "linkup":
		return "5: LinkUp"
	case "polling":
		return "2: Polling"
	default:
		return "3: Disabled"
	}
}

func ibRateLabel(gbps int) string {
	switch gbps {
	case 400:
		return "400 Gb/sec (4X NDR)"
	case 200:
		return "200 Gb/sec (4X HDR)"
	case 100:
		return "100 Gb/sec (4X EDR)"
	default:
		return fmt.Sprintf("%d Gb/sec", gbps)
	}
}

func ibstatus(node cluster.Node, args []string) simulator.Result {
	name, port := "", 0
	if len(args) > 0 {
		n, p, hasPort := strings.Cut(args[0], ":")
		name = n
		if hasPort {
			port, _ = strconv.Atoi(p)
		}
	}

	hcas, ok := selectHCAs(node, name)
	if !ok {
		return simulator.Fail(simulator.ExitFailure, "%s: not found\n", name)
	}

	var b strings.Builder
	for _, h := range hcas {
		for _, p := range h.Ports {
			if port != 0 && p.Number != port {
				continue
			}
			guid := strings.TrimPrefix(p.PortGUID, "0x")
			if len(guid) < 16 {
				guid = strings.Repeat("0", 16-len(guid)) + guid
			}
			fmt.Fprintf(&b, "Infiniband device '%s' port %d status:\n", h.Name, p.Number)
			fmt.Fprintf(&b, "\tdefault gid:\t fe80:0000:0000:0000:%s:%s:%s:%s\n", guid[0:4], guid[4:8], guid[8:12], guid[12:16])
			fmt.Fprintf(&b, "\tbase lid:\t 0x%x\n", p.LID)
			b.WriteString("\tsm lid:\t\t 0x1\n")
			fmt.Fprintf(&b, "\tstate:\t\t %s\n", ibStateCode(p.State))
			fmt.Fprintf(&b, "\tphys state:\t %s\n", ibPhysCode(p.PhysicalState))
			fmt.Fprintf(&b, "\trate:\t\t %s\n", ibRateLabel(p.RateGbps))
			b.WriteString("\tlink_layer:\t InfiniBand\n\n")
		}
	}
	return simulator.OK(b.String())
}
