package tools

import (
	"fmt"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/internal/simulator"
)

const nvidiaSMIUsage = `NVIDIA System Management Interface -- v535.129.03

Usage: nvidia-smi [OPTION1 [ARG1]] [OPTION2 [ARG2]] ...

    -h,   --help                Print usage information and exit.
    -L,   --list-gpus           Display a list of GPUs connected to the system.
    -q,   --query               Display GPU or Unit info.
    -i,   --id=                 Target a specific GPU.
    -d,   --display=            Display only selected information: MEMORY,
                                    UTILIZATION, ECC, TEMPERATURE, POWER.
    -r    --gpu-reset           Trigger reset of the GPU.
    -mig  --multi-instance-gpu= Enable or disable MIG mode: 0/DISABLED, 1/ENABLED
    --query-gpu=                Information about GPU. Pass comma separated list of properties.
    --format=                   Comma separated list of format options: csv, noheader, nounits

    topo -m                     Display the GPU topology matrix.
    nvlink -s                   Display NVLink status for each link.
`

type smiVerb int

const (
	smiSummary smiVerb = iota
	smiTopo
	smiNvlink
	smiUnknown
)

func parseSMIVerb(s string) smiVerb {
	switch s {
	case "":
		return smiSummary
	case "topo":
		return smiTopo
	case "nvlink":
		return smiNvlink
	default:
		return smiUnknown
	}
}

// NvidiaSMI simulates nvidia-smi.
type NvidiaSMI struct {
	simulator.Base
}

// NewNvidiaSMI creates the nvidia-smi simulator.
func NewNvidiaSMI() *NvidiaSMI {
	return &NvidiaSMI{Base: simulator.Base{Meta: simulator.Metadata{
		Name:        "nvidia-smi",
		Version:     "535.129.03",
		Description: "NVIDIA System Management Interface",
		Commands:    []string{"nvidia-smi"},
		Usage:       nvidiaSMIUsage,
	}}}
}

// Execute implements simulator.Simulator.
func (s *NvidiaSMI) Execute(cmd parser.ParsedCommand, cmdCtx simulator.CommandContext, state simulator.StateAccessor) simulator.Result {
	if r, done := s.Preflight(cmd); done {
		return r
	}

	node, ok := simulator.ResolveNode(state, cmdCtx, "")
	if !ok {
		return simulator.Fail(9, "NVIDIA-SMI has failed because it couldn't communicate with the NVIDIA driver.\n")
	}

	switch verb := parseSMIVerb(cmd.Subcommand()); verb {
	case smiTopo:
		if !cmd.HasFlag("m", "matrix") {
			return simulator.Fail(simulator.ExitUsage, "Usage: nvidia-smi topo -m\n")
		}
		return simulator.OK(smiTopology(node))
	case smiNvlink:
		gpus, err := selectGPUs(node, cmd.FlagString("i", "id"))
		if err != nil {
			return smiNoGPU(cmd.FlagString("i", "id"))
		}
		return simulator.OK(smiNvlinkStatus(gpus))
	case smiSummary:
		return s.root(cmd, node, state)
	default:
		return s.UnknownSubcommand(cmd, cmd.Subcommand())
	}
}

func (s *NvidiaSMI) root(cmd parser.ParsedCommand, node cluster.Node, state simulator.StateAccessor) simulator.Result {
	idSpec := cmd.FlagString("i", "id")
	gpus, err := selectGPUs(node, idSpec)
	if err != nil {
		return smiNoGPU(idSpec)
	}

	switch {
	case cmd.HasFlag("mig", "multi-instance-gpu"):
		return s.setMIG(cmd, node, gpus, idSpec, state)
	case cmd.HasFlag("r", "gpu-reset"):
		return s.reset(cmd, node, gpus, idSpec, state)
	case cmd.HasFlag("query-gpu"):
		return smiQueryGPU(cmd, node, gpus)
	case cmd.HasFlag("L", "list-gpus"):
		var b strings.Builder
		for _, g := range gpus {
			fmt.Fprintf(&b, "GPU %d: %s (UUID: %s)\n", g.ID, g.Name, g.UUID)
		}
		return simulator.OK(b.String())
	case cmd.HasFlag("q", "query"):
		return simulator.OK(smiQuery(node, gpus, strings.ToUpper(cmd.FlagString("d", "display"))))
	}
	return simulator.OK(smiSummaryTable(node, gpus))
}

func (s *NvidiaSMI) setMIG(cmd parser.ParsedCommand, node cluster.Node, gpus []cluster.GPU, idSpec string, state simulator.StateAccessor) simulator.Result {
	if idSpec == "" {
		return simulator.Fail(simulator.ExitUsage, "Specify the GPU with -i when changing MIG mode.\n")
	}
	var enable bool
	switch strings.ToUpper(cmd.FlagString("mig", "multi-instance-gpu")) {
	case "1", "ENABLED":
		enable = true
	case "0", "DISABLED":
		enable = false
	default:
		return simulator.Fail(simulator.ExitUsage, "Invalid MIG mode. Valid values are 0/DISABLED and 1/ENABLED.\n")
	}

	var b strings.Builder
	for _, g := range gpus {
		state.SetMIGMode(node.ID, g.ID, enable, cmd.Raw)
		if enable {
			fmt.Fprintf(&b, "Enabled MIG Mode for GPU %s\n", g.PCIBusID)
		} else {
			fmt.Fprintf(&b, "Disabled MIG Mode for GPU %s\n", g.PCIBusID)
		}
	}
	b.WriteString("All done.\n")
	return simulator.OK(b.String())
}

func (s *NvidiaSMI) reset(cmd parser.ParsedCommand, node cluster.Node, gpus []cluster.GPU, idSpec string, state simulator.StateAccessor) simulator.Result {
	if idSpec == "" && len(gpus) > 1 {
		return simulator.Fail(simulator.ExitUsage, "Specify the GPU to reset with -i.\n")
	}

	var b strings.Builder
	for _, g := range gpus {
		for _, x := range g.XIDErrors {
			if x.Code == 79 {
				return simulator.Fail(15, "GPU %s is lost. Reboot the system to recover this GPU\n", g.PCIBusID)
			}
		}
	}
	for _, g := range gpus {
		state.UpdateGPU(node.ID, g.ID, cluster.GPUUpdate{
			Utilization:    cluster.Ptr(0.0),
			MemoryUsedMiB:  cluster.Ptr(4),
			Health:         cluster.Ptr(cluster.HealthOK),
			ECCErrors:      &cluster.ECCCounters{},
			ClearXIDErrors: true,
		}, cmd.Raw)
		fmt.Fprintf(&b, "GPU %s was successfully reset.\n", g.PCIBusID)
	}
	b.WriteString("All done.\n")
	return simulator.OK(b.String())
}

func smiNoGPU(spec string) simulator.Result {
	return simulator.Fail(6, "No devices were found matching %q\n", spec)
}

func migLabel(enabled bool) string {
	if enabled {
		return "Enabled"
	}
	return "Disabled"
}

func smiSummaryTable(node cluster.Node, gpus []cluster.GPU) string {
	const rule = "+-----------------------------------------+----------------------+----------------------+\n"
	var b strings.Builder
	b.WriteString("+---------------------------------------------------------------------------------------+\n")
	fmt.Fprintf(&b, "| NVIDIA-SMI %-22s Driver Version: %-14s CUDA Version: %-8s |\n", node.DriverVer, node.DriverVer, node.CUDAVer)
	b.WriteString(rule)
	b.WriteString("| GPU  Name                 Persistence-M | Bus-Id        Disp.A | Volatile Uncorr. ECC |\n")
	b.WriteString("| Fan  Temp   Perf          Pwr:Usage/Cap |         Memory-Usage | GPU-Util  Compute M. |\n")
	b.WriteString("|                                         |                      |               MIG M. |\n")
	b.WriteString("|=========================================+======================+======================|\n")
	for _, g := range gpus {
		fmt.Fprintf(&b, "| %3d  %-31s On | %-16s Off | %20d |\n", g.ID, padRight(g.Name, 31), g.PCIBusID, g.ECCErrors.DoubleBit)
		fmt.Fprintf(&b, "| N/A  %3.0fC    %-4s %13s | %20s | %7.0f%%      Default |\n",
			g.Temperature, "P0",
			fmt.Sprintf("%.0fW / %.0fW", g.PowerDraw, g.PowerLimit),
			fmt.Sprintf("%dMiB / %dMiB", g.MemoryUsedMiB, g.MemoryTotalMiB),
			g.Utilization)
		fmt.Fprintf(&b, "|                                         |                      | %20s |\n", migLabel(g.MIGEnabled))
		b.WriteString(rule)
	}
	b.WriteString("\n")
	b.WriteString("+---------------------------------------------------------------------------------------+\n")
	b.WriteString("| Processes:                                                                            |\n")
	b.WriteString("|  GPU   GI   CI        PID   Type   Process name                            GPU Memory |\n")
	b.WriteString("|        ID   ID                                                             Usage      |\n")
	b.WriteString("|=======================================================================================|\n")
	b.WriteString("|  No running processes found                                                           |\n")
	b.WriteString("+---------------------------------------------------------------------------------------+\n")
	return b.String()
}

func smiQuery(node cluster.Node, gpus []cluster.GPU, display string) string {
	show := func(section string) bool {
		return display == "" || strings.Contains(display, section)
	}
	line := func(b *strings.Builder, indent int, key, value string) {
		fmt.Fprintf(b, "%s%-*s: %s\n", strings.Repeat("    ", indent), 38-4*indent, key, value)
	}

	var b strings.Builder
	b.WriteString("\n==============NVSMI LOG==============\n\n")
	line(&b, 0, "Driver Version", node.DriverVer)
	line(&b, 0, "CUDA Version", node.CUDAVer)
	b.WriteString("\n")
	line(&b, 0, "Attached GPUs", fmt.Sprintf("%d", len(node.GPUs)))

	for _, g := range gpus {
		fmt.Fprintf(&b, "GPU %s\n", g.PCIBusID)
		if display == "" {
			line(&b, 1, "Product Name", g.Name)
			line(&b, 1, "Serial Number", g.Serial)
			line(&b, 1, "GPU UUID", g.UUID)
			line(&b, 1, "Minor Number", fmt.Sprintf("%d", g.ID))
			b.WriteString("    MIG Mode\n")
			line(&b, 2, "Current", migLabel(g.MIGEnabled))
			line(&b, 2, "Pending", migLabel(g.MIGEnabled))
		}
		if show("MEMORY") {
			b.WriteString("    FB Memory Usage\n")
			line(&b, 2, "Total", fmt.Sprintf("%d MiB", g.MemoryTotalMiB))
			line(&b, 2, "Used", fmt.Sprintf("%d MiB", g.MemoryUsedMiB))
			line(&b, 2, "Free", fmt.Sprintf("%d MiB", g.MemoryTotalMiB-g.MemoryUsedMiB))
		}
		if show("UTILIZATION") {
			b.WriteString("    Utilization\n")
			line(&b, 2, "Gpu", fmt.Sprintf("%.0f %%", g.Utilization))
		}
		if show("ECC") {
			b.WriteString("    ECC Errors\n")
			b.WriteString("        Volatile\n")
			line(&b, 3, "SRAM Correctable", fmt.Sprintf("%d", g.ECCErrors.SingleBit))
			line(&b, 3, "SRAM Uncorrectable", fmt.Sprintf("%d", g.ECCErrors.DoubleBit))
		}
		if show("TEMPERATURE") {
			b.WriteString("    Temperature\n")
			line(&b, 2, "GPU Current Temp", fmt.Sprintf("%.0f C", g.Temperature))
			line(&b, 2, "GPU Shutdown Temp", "92 C")
			line(&b, 2, "GPU Slowdown Temp", "89 C")
		}
		if show("POWER") {
			b.WriteString("    Power Readings\n")
			line(&b, 2, "Power Draw", fmt.Sprintf("%.2f W", g.PowerDraw))
			line(&b, 2, "Current Power Limit", fmt.Sprintf("%.2f W", g.PowerLimit))
		}
		b.WriteString("\n")
	}
	return b.String()
}

type queryField struct {
	unit  string
	value func(n cluster.Node, g cluster.GPU) string
}

var queryFields = map[string]queryField{
	"index":            {"", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%d", g.ID) }},
	"name":             {"", func(_ cluster.Node, g cluster.GPU) string { return g.Name }},
	"uuid":             {"", func(_ cluster.Node, g cluster.GPU) string { return g.UUID }},
	"serial":           {"", func(_ cluster.Node, g cluster.GPU) string { return g.Serial }},
	"pci.bus_id":       {"", func(_ cluster.Node, g cluster.GPU) string { return g.PCIBusID }},
	"driver_version":   {"", func(n cluster.Node, _ cluster.GPU) string { return n.DriverVer }},
	"temperature.gpu":  {"", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%.0f", g.Temperature) }},
	"power.draw":       {"W", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%.2f", g.PowerDraw) }},
	"power.limit":      {"W", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%.2f", g.PowerLimit) }},
	"utilization.gpu":  {"%", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%.0f", g.Utilization) }},
	"memory.total":     {"MiB", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%d", g.MemoryTotalMiB) }},
	"memory.used":      {"MiB", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%d", g.MemoryUsedMiB) }},
	"memory.free":      {"MiB", func(_ cluster.Node, g cluster.GPU) string { return fmt.Sprintf("%d", g.MemoryTotalMiB-g.MemoryUsedMiB) }},
	"mig.mode.current": {"", func(_ cluster.Node, g cluster.GPU) string { return migLabel(g.MIGEnabled) }},
	"ecc.errors.uncorrected.volatile.total": {"", func(_ cluster.Node, g cluster.GPU) string {
		return fmt.Sprintf("%d", g.ECCErrors.DoubleBit)
	}},
}

func smiQueryGPU(cmd parser.ParsedCommand, node cluster.Node, gpus []cluster.GPU) simulator.Result {
	format := cmd.FlagString("format")
	if format == "" {
		return simulator.Fail(simulator.ExitUsage, "--format is required with --query-gpu\n")
	}
	opts := map[string]bool{}
	for _, o := range strings.Split(format, ",") {
		opts[strings.TrimSpace(o)] = true
	}
	if !opts["csv"] {
		return simulator.Fail(simulator.ExitUsage, "Only csv format is supported\n")
	}

	names := strings.Split(cmd.FlagString("query-gpu"), ",")
	fields := make([]queryField, len(names))
	for i, n := range names {
		names[i] = strings.TrimSpace(n)
		f, ok := queryFields[names[i]]
		if !ok {
			return simulator.Fail(simulator.ExitUsage, "Field \"%s\" is not a valid field to query.\n", names[i])
		}
		fields[i] = f
	}

	var b strings.Builder
	if !opts["noheader"] {
		header := make([]string, len(names))
		for i, n := range names {
			header[i] = n
			if fields[i].unit != "" && !opts["nounits"] {
				header[i] = fmt.Sprintf("%s [%s]", n, fields[i].unit)
			}
		}
		b.WriteString(strings.Join(header, ", ") + "\n")
	}
	for _, g := range gpus {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = f.value(node, g)
			if f.unit != "" && !opts["nounits"] {
				row[i] += " " + f.unit
			}
		}
		b.WriteString(strings.Join(row, ", ") + "\n")
	}
	return simulator.OK(b.String())
}

func smiTopology(node cluster.Node) string {
	var cols []string
	for _, g := range node.GPUs {
		cols = append(cols, fmt.Sprintf("GPU%d", g.ID))
	}
	for _, h := range node.HCAs {
		cols = append(cols, strings.ToUpper(strings.Replace(h.Name, "mlx5_", "NIC", 1)))
	}

	var b strings.Builder
	b.WriteString("\t")
	for _, c := range cols {
		fmt.Fprintf(&b, "%-6s", c)
	}
	b.WriteString("CPU Affinity\tNUMA Affinity\n")

	half := len(node.GPUs) / 2
	for i, g := range node.GPUs {
		fmt.Fprintf(&b, "GPU%d\t", g.ID)
		for j, o := range node.GPUs {
			if i == j {
				fmt.Fprintf(&b, "%-6s", "X")
				continue
			}
			fmt.Fprintf(&b, "%-6s", fmt.Sprintf("NV%d", activeLinks(g, o)))
		}
		for k := range node.HCAs {
			fmt.Fprintf(&b, "%-6s", nicRelation(i, k))
		}
		numa := 0
		if half > 0 && i >= half {
			numa = 1
		}
		fmt.Fprintf(&b, "%s\t%d\n", cpuRange(node.CPUCount, numa), numa)
	}
	for k, h := range node.HCAs {
		fmt.Fprintf(&b, "%s\t", strings.ToUpper(strings.Replace(h.Name, "mlx5_", "NIC", 1)))
		for i := range node.GPUs {
			fmt.Fprintf(&b, "%-6s", nicRelation(i, k))
		}
		for j := range node.HCAs {
			if j == k {
				fmt.Fprintf(&b, "%-6s", "X")
			} else {
				fmt.Fprintf(&b, "%-6s", "SYS")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Legend:

  X    = Self
  SYS  = Connection traversing PCIe as well as the SMP interconnect between NUMA nodes
  PXB  = Connection traversing multiple PCIe bridges (without traversing the PCIe Host Bridge)
  NV#  = Connection traversing a bonded set of # NVLinks
`)
	return b.String()
}

func activeLinks(a, b cluster.GPU) int {
	count := func(g cluster.GPU) int {
		n := 0
		for _, l := range g.NVLinks {
			if l.Active {
				n++
			}
		}
		return n
	}
	return min(count(a), count(b))
}

func nicRelation(gpu, nic int) string {
	if gpu == nic {
		return "PXB"
	}
	return "SYS"
}

// cpuRange returns the logical CPUs local to a NUMA node on a two socket
// system with SMT, matching the layout nvidia-smi reports.
func cpuRange(cpus, numa int) string {
	if cpus < 4 {
		return "N/A"
	}
	half, quarter := cpus/2, cpus/4
	lo := numa * quarter
	return fmt.Sprintf("%d-%d,%d-%d", lo, lo+quarter-1, half+lo, half+lo+quarter-1)
}

func smiNvlinkStatus(gpus []cluster.GPU) string {
	var b strings.Builder
	for _, g := range gpus {
		fmt.Fprintf(&b, "GPU %d: %s (UUID: %s)\n", g.ID, g.Name, g.UUID)
		for _, l := range g.NVLinks {
			if l.Active {
				fmt.Fprintf(&b, "\t Link %d: %g GB/s\n", l.Link, l.BandwidthGBs)
			} else {
				fmt.Fprintf(&b, "\t Link %d: <inactive>\n", l.Link)
			}
		}
	}
	return b.String()
}
