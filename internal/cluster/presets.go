package cluster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// gpuNamespace seeds the name-based UUIDs of simulated hardware so that
// identifiers are stable across runs.
var gpuNamespace = uuid.MustParse("6f1c7a9e-4b0d-5c3e-9a61-2d8f0e7b4c15")

// pciBuses mirrors the GPU bus layout of a DGX baseboard.
var pciBuses = []string{"07", "0F", "47", "4E", "87", "90", "B7", "BD"}

type preset struct {
	systemType   string
	gpuName      string
	gpuCount     int
	memoryMiB    int
	powerLimit   float64
	nvlinks      int
	nvlinkGBs    float64
	hcaCount     int
	hcaFirmware  string
	ibRate       int
	cpuCount     int
	memoryGB     int
	driver       string
	cuda         string
	defaultNodes int
}

var presets = map[string]preset{
	"dgx-a100": {
		systemType: "DGX A100", gpuName: "NVIDIA A100-SXM4-80GB", gpuCount: 8,
		memoryMiB: 81920, powerLimit: 400, nvlinks: 12, nvlinkGBs: 25,
		hcaCount: 8, hcaFirmware: "20.35.1012", ibRate: 200,
		cpuCount: 256, memoryGB: 2048, driver: "535.129.03", cuda: "12.2",
		defaultNodes: 4,
	},
	"dgx-h100": {
		systemType: "DGX H100", gpuName: "NVIDIA H100 80GB HBM3", gpuCount: 8,
		memoryMiB: 81559, powerLimit: 700, nvlinks: 18, nvlinkGBs: 26.562,
		hcaCount: 8, hcaFirmware: "28.39.1002", ibRate: 400,
		cpuCount: 224, memoryGB: 2048, driver: "550.54.15", cuda: "12.4",
		defaultNodes: 4,
	},
	"small": {
		systemType: "DGX A100", gpuName: "NVIDIA A100-SXM4-40GB", gpuCount: 2,
		memoryMiB: 40960, powerLimit: 400, nvlinks: 12, nvlinkGBs: 25,
		hcaCount: 1, hcaFirmware: "20.35.1012", ibRate: 200,
		cpuCount: 128, memoryGB: 1024, driver: "535.129.03", cuda: "12.2",
		defaultNodes: 2,
	},
}

// ErrUnknownPreset is returned by NewPreset for unrecognised preset names.
var ErrUnknownPreset = errors.New("unknown cluster preset")

// PresetNames returns the available preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPreset builds a healthy, idle cluster from a named preset.
// A node count of zero or less selects the preset's default size.
func NewPreset(name string, nodes int) (*State, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownPreset, name, PresetNames())
	}
	if nodes <= 0 {
		nodes = p.defaultNodes
	}

	s := &State{Name: name}
	nodeIDs := make([]string, 0, nodes)
	for i := 1; i <= nodes; i++ {
		n := p.node(fmt.Sprintf("node-%02d", i))
		nodeIDs = append(nodeIDs, n.ID)
		s.Nodes = append(s.Nodes, n)
	}

	s.SlurmPartitions = []Partition{
		{Name: "gpu", Default: true, TimeLimit: "infinite", Nodes: nodeIDs},
	}
	if nodes > 1 {
		s.Jobs = []Job{
			{ID: 1001, Name: "train-llm", User: "alice", Partition: "gpu", State: "PD", Elapsed: "0:00", GPUs: p.gpuCount, Nodes: nil},
		}
	}
	return s, nil
}

// MustPreset is NewPreset for known-good names; it panics on error.
func MustPreset(name string, nodes int) *State {
	s, err := NewPreset(name, nodes)
	if err != nil {
		panic(err)
	}
	return s
}

func (p preset) node(id string) Node {
	n := Node{
		ID:         id,
		Hostname:   id,
		SystemType: p.systemType,
		Health:     HealthOK,
		SlurmState: SlurmIdle,
		CPUCount:   p.cpuCount,
		MemoryGB:   p.memoryGB,
		DriverVer:  p.driver,
		CUDAVer:    p.cuda,
	}
	for g := 0; g < p.gpuCount; g++ {
		n.GPUs = append(n.GPUs, p.gpu(id, g))
	}
	for h := 0; h < p.hcaCount; h++ {
		n.HCAs = append(n.HCAs, p.hca(id, h))
	}
	return n
}

func (p preset) gpu(nodeID string, idx int) GPU {
	id := StableID(nodeID, fmt.Sprintf("gpu/%d", idx))
	g := GPU{
		ID:             idx,
		UUID:           "GPU-" + id.String(),
		Name:           p.gpuName,
		Serial:         fmt.Sprintf("1652%09d", binary.BigEndian.Uint32(id[:4])%1_000_000_000),
		PCIBusID:       fmt.Sprintf("00000000:%s:00.0", pciBuses[idx%len(pciBuses)]),
		Temperature:    35,
		PowerDraw:      60,
		PowerLimit:     p.powerLimit,
		MemoryTotalMiB: p.memoryMiB,
		MemoryUsedMiB:  4,
		Health:         HealthOK,
	}
	for l := 0; l < p.nvlinks; l++ {
		g.NVLinks = append(g.NVLinks, NVLink{Link: l, Active: true, BandwidthGBs: p.nvlinkGBs})
	}
	return g
}

func (p preset) hca(nodeID string, idx int) HCA {
	id := StableID(nodeID, fmt.Sprintf("hca/%d", idx))
	guid := fmt.Sprintf("0x%x", binary.BigEndian.Uint64(id[:8]))
	return HCA{
		Name:            fmt.Sprintf("mlx5_%d", idx),
		FirmwareVersion: p.hcaFirmware,
		NodeGUID:        guid,
		Ports: []IBPort{{
			Number:        1,
			State:         "Active",
			PhysicalState: "LinkUp",
			RateGbps:      p.ibRate,
			LID:           1 + idx,
			PortGUID:      guid,
		}},
	}
}

// StableID derives a name-based UUID from a node id and a local key.
// The same inputs always produce the same identifier.
func StableID(nodeID, key string) uuid.UUID {
	return uuid.NewSHA1(gpuNamespace, []byte(nodeID+"/"+key))
}

// Validate reports structural problems that make s unusable as a scenario
// snapshot: empty or duplicate node ids and duplicate GPU indices.
func (s *State) Validate() error {
	if s == nil {
		return errors.New("cluster state is nil")
	}
	var errs []error
	seen := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("node %d: empty id", i))
			continue
		}
		if seen[n.ID] {
			errs = append(errs, fmt.Errorf("node %q: duplicate id", n.ID))
		}
		seen[n.ID] = true
		gpus := make(map[int]bool, len(n.GPUs))
		for _, g := range n.GPUs {
			if gpus[g.ID] {
				errs = append(errs, fmt.Errorf("node %q: duplicate gpu index %d", n.ID, g.ID))
			}
			gpus[g.ID] = true
		}
	}
	return errors.Join(errs...)
}
