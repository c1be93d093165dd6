package tools

import (
	"fmt"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/internal/simulator"
)

const dcgmiUsage = `Usage: dcgmi <subsystem> [options]

  subsystems:
    discovery -l          List the GPUs visible to DCGM.
    health -c             Check the health of the GPUs in the default group.
    health -s <systems>   Set health watches (a = all).
    diag -r <1|2|3>       Run a diagnostic of the given level.
    group -l              List GPU groups.
`

// thermalWarning is the temperature above which dcgmi health reports a
// thermal warning.
const thermalWarning = 85.0

type dcgmiVerb int

const (
	dcgmiNone dcgmiVerb = iota
	dcgmiDiscovery
	dcgmiHealth
	dcgmiDiag
	dcgmiGroup
	dcgmiUnknown
)

func parseDCGMIVerb(s string) dcgmiVerb {
	switch s {
	case "":
		return dcgmiNone
	case "discovery":
		return dcgmiDiscovery
	case "health":
		return dcgmiHealth
	case "diag":
		return dcgmiDiag
	case "group":
		return dcgmiGroup
	default:
		return dcgmiUnknown
	}
}

// DCGMI simulates the DCGM command line client.
type DCGMI struct {
	simulator.Base
}

// NewDCGMI creates the dcgmi simulator.
func NewDCGMI() *DCGMI {
	return &DCGMI{Base: simulator.Base{Meta: simulator.Metadata{
		Name:        "dcgmi",
		Version:     "3.3.0",
		Description: "NVIDIA Data Center GPU Manager client",
		Commands:    []string{"dcgmi"},
		Usage:       dcgmiUsage,
	}}}
}

// Execute implements simulator.Simulator.
func (d *DCGMI) Execute(cmd parser.ParsedCommand, cmdCtx simulator.CommandContext, state simulator.StateAccessor) simulator.Result {
	if r, done := d.Preflight(cmd); done {
		return r
	}

	node, ok := simulator.ResolveNode(state, cmdCtx, "")
	if !ok {
		return simulator.Fail(simulator.ExitFailure, "Error: unable to establish a connection to the specified host: localhost\n")
	}

	switch parseDCGMIVerb(cmd.Subcommand()) {
	case dcgmiNone:
		return simulator.Fail(simulator.ExitUsage, "%s", dcgmiUsage)
	case dcgmiDiscovery:
		if !cmd.HasFlag("l", "list") {
			return simulator.Fail(simulator.ExitUsage, "Usage: dcgmi discovery -l\n")
		}
		return simulator.OK(dcgmiDiscoveryList(node))
	case dcgmiHealth:
		switch {
		case cmd.HasFlag("c", "check"):
			return dcgmiHealthCheck(node)
		case cmd.HasFlag("s", "set"):
			return simulator.OK("Health monitor systems set successfully.\n")
		}
		return simulator.Fail(simulator.ExitUsage, "Usage: dcgmi health -c | -s <systems>\n")
	case dcgmiDiag:
		return dcgmiDiagnostic(cmd, node)
	case dcgmiGroup:
		if !cmd.HasFlag("l", "list") {
			return simulator.Fail(simulator.ExitUsage, "Usage: dcgmi group -l\n")
		}
		return simulator.OK(dcgmiGroupList(node))
	default:
		return d.UnknownSubcommand(cmd, cmd.Subcommand())
	}
}

func dcgmiDiscoveryList(node cluster.Node) string {
	const rule = "+--------+----------------------------------------------------------------------------+\n"
	var b strings.Builder
	fmt.Fprintf(&b, "%d GPUs found.\n", len(node.GPUs))
	b.WriteString(rule)
	b.WriteString("| GPU ID | Device Information                                                         |\n")
	b.WriteString(rule)
	for _, g := range node.GPUs {
		fmt.Fprintf(&b, "| %-6d | %-74s |\n", g.ID, "Name: "+g.Name)
		fmt.Fprintf(&b, "|        | %-74s |\n", "PCI Bus ID: "+g.PCIBusID)
		fmt.Fprintf(&b, "|        | %-74s |\n", "Device UUID: "+g.UUID)
		b.WriteString(rule)
	}
	return b.String()
}

// gpuIncidents lists the health findings for one GPU and the worst
// severity among them.
func gpuIncidents(g cluster.GPU) ([]string, cluster.HealthStatus) {
	var out []string
	worst := cluster.HealthOK
	raise := func(h cluster.HealthStatus) {
		if healthOrder(h) > healthOrder(worst) {
			worst = h
		}
	}

	for _, x := range g.XIDErrors {
		sev := cluster.XIDSeverity(x.Code)
		raise(sev)
		out = append(out, fmt.Sprintf("%s - XID %d detected: %s", sev, x.Code, x.Message))
	}
	if g.ECCErrors.DoubleBit > 0 {
		raise(cluster.HealthCritical)
		out = append(out, fmt.Sprintf("Critical - Memory: %d volatile double-bit ECC errors", g.ECCErrors.DoubleBit))
	}
	if g.Temperature > thermalWarning {
		raise(cluster.HealthWarning)
		out = append(out, fmt.Sprintf("Warning - Thermal: temperature %.0f C exceeds %.0f C", g.Temperature, thermalWarning))
	}
	for _, l := range g.NVLinks {
		if !l.Active {
			raise(cluster.HealthWarning)
			out = append(out, fmt.Sprintf("Warning - NVLink: link %d is down", l.Link))
		}
	}
	if len(out) == 0 && g.Health != cluster.HealthOK && g.Health != "" {
		raise(g.Health)
		out = append(out, fmt.Sprintf("%s - GPU reported unhealthy", g.Health))
	}
	return out, worst
}

func healthOrder(h cluster.HealthStatus) int {
	switch h {
	case cluster.HealthCritical:
		return 3
	case cluster.HealthWarning:
		return 2
	case cluster.HealthUnknown:
		return 1
	}
	return 0
}

func dcgmiHealthCheck(node cluster.Node) simulator.Result {
	overall := cluster.HealthOK
	var details strings.Builder
	for _, g := range node.GPUs {
		incidents, worst := gpuIncidents(g)
		if healthOrder(worst) > healthOrder(overall) {
			overall = worst
		}
		for _, inc := range incidents {
			fmt.Fprintf(&details, "| GPU %-3d | %-66s |\n", g.ID, inc)
		}
	}

	const rule = "+---------+--------------------------------------------------------------------+\n"
	var b strings.Builder
	b.WriteString(rule)
	b.WriteString("| Health Monitor Report                                                        |\n")
	b.WriteString(rule)
	label := "Healthy"
	if overall != cluster.HealthOK {
		label = string(overall)
	}
	fmt.Fprintf(&b, "| Overall | %-66s |\n", label)
	if details.Len() > 0 {
		b.WriteString(rule)
		b.WriteString(details.String())
	}
	b.WriteString(rule)
	return simulator.OK(b.String())
}

type diagTest struct {
	category string
	name     string
	level    int
	fails    func(cluster.GPU) bool
}

func hasXID(g cluster.GPU, codes ...int) bool {
	for _, x := range g.XIDErrors {
		for _, c := range codes {
			if x.Code == c {
				return true
			}
		}
	}
	return false
}

func never(cluster.GPU) bool { return false }

var diagTests = []diagTest{
	{"Deployment", "Denylist", 1, never},
	{"Deployment", "NVML Library", 1, never},
	{"Deployment", "CUDA Main Library", 1, never},
	{"Deployment", "Permissions and OS Blocks", 1, never},
	{"Deployment", "Persistence Mode", 1, never},
	{"Deployment", "Environment Variables", 1, never},
	{"Deployment", "Page Retirement/Row Remap", 1, func(g cluster.GPU) bool {
		return hasXID(g, 63, 64) || g.ECCErrors.DoubleBit > 0
	}},
	{"Deployment", "Graphics Processes", 1, never},
	{"Deployment", "Inforom", 1, never},
	{"Integration", "PCIe", 2, func(g cluster.GPU) bool { return hasXID(g, 79) }},
	{"Integration", "NVLink", 2, func(g cluster.GPU) bool {
		for _, l := range g.NVLinks {
			if !l.Active {
				return true
			}
		}
		return hasXID(g, 74)
	}},
	{"Hardware", "GPU Memory", 2, func(g cluster.GPU) bool {
		return hasXID(g, 48, 94, 95) || g.ECCErrors.DoubleBit > 0
	}},
	{"Stress", "Targeted Stress", 3, func(g cluster.GPU) bool { return hasXID(g, 13, 43) }},
	{"Stress", "Targeted Power", 3, func(g cluster.GPU) bool { return g.Temperature > thermalWarning }},
	{"Stress", "Memory Bandwidth", 3, never},
	{"Stress", "SM Stress", 3, func(g cluster.GPU) bool { return hasXID(g, 13, 31) }},
}

func dcgmiDiagnostic(cmd parser.ParsedCommand, node cluster.Node) simulator.Result {
	level := 0
	switch strings.ToLower(cmd.FlagString("r", "run")) {
	case "1", "short":
		level = 1
	case "2", "medium":
		level = 2
	case "3", "long":
		level = 3
	default:
		return simulator.Fail(simulator.ExitUsage, "Error: invalid diagnostic level %q. Valid levels are 1, 2 and 3.\n", cmd.FlagString("r", "run"))
	}

	const rule = "+---------------------------+------------------------------------------------+\n"
	var b strings.Builder
	failed := false
	b.WriteString("Successfully ran diagnostic for group.\n")
	b.WriteString(rule)
	b.WriteString("| Diagnostic                | Result                                         |\n")
	b.WriteString("+===========================+================================================+\n")
	category := ""
	for _, t := range diagTests {
		if t.level > level {
			continue
		}
		if t.category != category {
			category = t.category
			fmt.Fprintf(&b, "|-----  %-19s  -----+------------------------------------------------|\n", category)
		}
		var bad []string
		for _, g := range node.GPUs {
			if hasXID(g, 79) || t.fails(g) {
				bad = append(bad, fmt.Sprintf("%d", g.ID))
			}
		}
		result := "Pass"
		if len(bad) > 0 {
			result = "Fail - GPU: " + strings.Join(bad, ", ")
			failed = true
		}
		fmt.Fprintf(&b, "| %-25s | %-46s |\n", t.name, result)
	}
	b.WriteString(rule)

	if failed {
		return simulator.Result{Output: b.String(), ExitCode: simulator.ExitFailure}
	}
	return simulator.OK(b.String())
}

func dcgmiGroupList(node cluster.Node) string {
	ids := make([]string, len(node.GPUs))
	for i, g := range node.GPUs {
		ids[i] = fmt.Sprintf("%d", g.ID)
	}
	const rule = "+-------------------+----------------------------------------------------------+\n"
	var b strings.Builder
	b.WriteString(rule)
	b.WriteString("| GROUPS                                                                       |\n")
	b.WriteString("| 1 group found.                                                               |\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "| %-17s | %-56s |\n", "Group ID", "0")
	fmt.Fprintf(&b, "| %-17s | %-56s |\n", "Group Name", "DCGM_ALL_SUPPORTED_GPUS")
	fmt.Fprintf(&b, "| %-17s | %-56s |\n", "Entities", "GPU "+strings.Join(ids, ", GPU "))
	b.WriteString(rule)
	return b.String()
}
