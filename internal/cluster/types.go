package cluster

import "time"

// HealthStatus is the coarse health classification shared by nodes and GPUs.
type HealthStatus string

const (
	HealthOK       HealthStatus = "OK"
	HealthWarning  HealthStatus = "Warning"
	HealthCritical HealthStatus = "Critical"
	HealthUnknown  HealthStatus = "Unknown"
)

// ParseHealthStatus maps a case-insensitive name onto a HealthStatus.
func ParseHealthStatus(s string) (HealthStatus, bool) {
	switch normalize(s) {
	case "ok", "healthy", "pass":
		return HealthOK, true
	case "warning", "warn":
		return HealthWarning, true
	case "critical", "fail", "failed":
		return HealthCritical, true
	case "unknown":
		return HealthUnknown, true
	}
	return "", false
}

// SlurmState is the scheduler state of a node as reported by sinfo.
type SlurmState string

const (
	SlurmIdle  SlurmState = "idle"
	SlurmAlloc SlurmState = "alloc"
	SlurmMixed SlurmState = "mix"
	SlurmDrain SlurmState = "drain"
	SlurmDown  SlurmState = "down"
)

// ParseSlurmState maps scontrol state names onto a SlurmState.
// "resume" and "undrain" both return a node to idle.
func ParseSlurmState(s string) (SlurmState, bool) {
	switch normalize(s) {
	case "idle", "resume", "undrain":
		return SlurmIdle, true
	case "alloc", "allocated":
		return SlurmAlloc, true
	case "mix", "mixed":
		return SlurmMixed, true
	case "drain", "drained", "draining":
		return SlurmDrain, true
	case "down":
		return SlurmDown, true
	}
	return "", false
}

// State is a complete cluster snapshot.
type State struct {
	Name            string      `json:"name"`
	Nodes           []Node      `json:"nodes"`
	SlurmPartitions []Partition `json:"slurmPartitions,omitempty"`
	Jobs            []Job       `json:"jobs,omitempty"`
}

// Node is a single GPU server.
type Node struct {
	ID          string       `json:"id"`
	Hostname    string       `json:"hostname"`
	SystemType  string       `json:"systemType"`
	Health      HealthStatus `json:"health"`
	SlurmState  SlurmState   `json:"slurmState"`
	SlurmReason string       `json:"slurmReason,omitempty"`
	CPUCount    int          `json:"cpuCount"`
	MemoryGB    int          `json:"memoryGB"`
	DriverVer   string       `json:"driverVersion"`
	CUDAVer     string       `json:"cudaVersion"`
	GPUs        []GPU        `json:"gpus"`
	HCAs        []HCA        `json:"hcas,omitempty"`
}

// GPU is one accelerator inside a node. ID is the node-local index.
type GPU struct {
	ID             int          `json:"id"`
	UUID           string       `json:"uuid"`
	Name           string       `json:"name"`
	Serial         string       `json:"serial"`
	PCIBusID       string       `json:"pciBusId"`
	Temperature    float64      `json:"temperature"`
	PowerDraw      float64      `json:"powerDraw"`
	PowerLimit     float64      `json:"powerLimit"`
	Utilization    float64      `json:"utilization"`
	MemoryTotalMiB int          `json:"memoryTotalMiB"`
	MemoryUsedMiB  int          `json:"memoryUsedMiB"`
	MIGEnabled     bool         `json:"migEnabled"`
	Health         HealthStatus `json:"health"`
	XIDErrors      []XIDError   `json:"xidErrors,omitempty"`
	NVLinks        []NVLink     `json:"nvlinks,omitempty"`
	ECCErrors      ECCCounters  `json:"eccErrors"`
}

// XIDError is a driver-reported GPU fault.
type XIDError struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NVLink is one GPU-to-GPU link.
type NVLink struct {
	Link         int     `json:"link"`
	Active       bool    `json:"active"`
	BandwidthGBs float64 `json:"bandwidthGBs"`
}

// ECCCounters holds volatile ECC error counts.
type ECCCounters struct {
	SingleBit int `json:"singleBit"`
	DoubleBit int `json:"doubleBit"`
}

// HCA is an InfiniBand host channel adapter.
type HCA struct {
	Name            string   `json:"name"`
	FirmwareVersion string   `json:"firmwareVersion"`
	NodeGUID        string   `json:"nodeGuid"`
	Ports           []IBPort `json:"ports"`
}

// IBPort is one port of an HCA.
type IBPort struct {
	Number        int    `json:"number"`
	State         string `json:"state"`
	PhysicalState string `json:"physicalState"`
	RateGbps      int    `json:"rateGbps"`
	LID           int    `json:"lid"`
	PortGUID      string `json:"portGuid"`
}

// Partition is a Slurm partition.
type Partition struct {
	Name      string   `json:"name"`
	Default   bool     `json:"default,omitempty"`
	TimeLimit string   `json:"timeLimit"`
	Nodes     []string `json:"nodes"`
}

// Job is a Slurm job.
type Job struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	User      string   `json:"user"`
	Partition string   `json:"partition"`
	State     string   `json:"state"`
	Elapsed   string   `json:"elapsed"`
	GPUs      int      `json:"gpus"`
	Nodes     []string `json:"nodes"`
}

// Node returns a pointer to the node with the given id, or nil.
// The pointer aliases s and must not escape the owner of s.
func (s *State) Node(id string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id || s.Nodes[i].Hostname == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

// GPU returns a pointer to the GPU with the given index, or nil.
func (n *Node) GPU(id int) *GPU {
	for i := range n.GPUs {
		if n.GPUs[i].ID == id {
			return &n.GPUs[i]
		}
	}
	return nil
}

// GPUCount returns the total number of GPUs in the cluster.
func (s *State) GPUCount() int {
	total := 0
	for _, n := range s.Nodes {
		total += len(n.GPUs)
	}
	return total
}
