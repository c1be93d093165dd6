package tools

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/simulator"
)

// All returns one instance of every simulated tool family.
func All() []simulator.Simulator {
	smi := NewNvidiaSMI()
	return []simulator.Simulator{
		smi,
		NewDCGMI(),
		NewSlurm(),
		NewInfiniBand(),
		NewDocker(smi),
		NewLinux(),
	}
}

// NewRegistry returns a registry with every tool registered.
func NewRegistry() *simulator.Registry {
	return simulator.NewRegistry().MustRegister(All()...)
}

// selectGPUs resolves an nvidia-smi style -i argument: a comma separated
// list of indices, UUIDs or PCI bus ids. An empty spec selects every GPU.
func selectGPUs(node cluster.Node, spec string) ([]cluster.GPU, error) {
	if spec == "" {
		return node.GPUs, nil
	}
	var out []cluster.GPU
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		g, ok := findGPU(node, part)
		if !ok {
			return nil, fmt.Errorf("no gpu matching %q", part)
		}
		out = append(out, g)
	}
	return out, nil
}

func findGPU(node cluster.Node, id string) (cluster.GPU, bool) {
	if idx, ok := simulator.ParseIndex(id); ok {
		for _, g := range node.GPUs {
			if g.ID == idx {
				return g, true
			}
		}
		return cluster.GPU{}, false
	}
	for _, g := range node.GPUs {
		if strings.EqualFold(g.UUID, id) || strings.EqualFold(g.PCIBusID, id) {
			return g, true
		}
	}
	return cluster.GPU{}, false
}

// compressHostlist renders node names in Slurm hostlist form, for example
// node-[01-03,05].
func compressHostlist(names []string) string {
	if len(names) == 0 {
		return ""
	}
	type numbered struct {
		num   int
		width int
	}
	groups := map[string][]numbered{}
	var plain []string
	var prefixes []string

	for _, n := range names {
		i := len(n)
		for i > 0 && n[i-1] >= '0' && n[i-1] <= '9' {
			i--
		}
		if i == len(n) {
			plain = append(plain, n)
			continue
		}
		num, _ := strconv.Atoi(n[i:])
		prefix := n[:i]
		if _, seen := groups[prefix]; !seen {
			prefixes = append(prefixes, prefix)
		}
		groups[prefix] = append(groups[prefix], numbered{num: num, width: len(n) - i})
	}

	var parts []string
	for _, prefix := range prefixes {
		nums := groups[prefix]
		sort.Slice(nums, func(i, j int) bool { return nums[i].num < nums[j].num })
		if len(nums) == 1 {
			parts = append(parts, fmt.Sprintf("%s%0*d", prefix, nums[0].width, nums[0].num))
			continue
		}
		var ranges []string
		start := 0
		for i := 1; i <= len(nums); i++ {
			if i < len(nums) && nums[i].num == nums[i-1].num+1 {
				continue
			}
			w := nums[start].width
			if start == i-1 {
				ranges = append(ranges, fmt.Sprintf("%0*d", w, nums[start].num))
			} else {
				ranges = append(ranges, fmt.Sprintf("%0*d-%0*d", w, nums[start].num, w, nums[i-1].num))
			}
			start = i
		}
		parts = append(parts, fmt.Sprintf("%s[%s]", prefix, strings.Join(ranges, ",")))
	}
	return strings.Join(append(parts, plain...), ",")
}

// maxHostlistNames bounds one expansion. Slurm itself refuses ranges past
// its hostlist limit instead of allocating them.
const maxHostlistNames = 1 << 16

var errHostlistTooLarge = errors.New("hostlist expression too large")

// expandHostlist is the inverse of compressHostlist.
func expandHostlist(expr string) ([]string, error) {
	var out []string
	push := func(name string) error {
		if len(out) >= maxHostlistNames {
			return errHostlistTooLarge
		}
		out = append(out, name)
		return nil
	}
	for _, item := range splitOutsideBrackets(expr) {
		open := strings.IndexByte(item, '[')
		if open < 0 || !strings.HasSuffix(item, "]") {
			if item != "" {
				if err := push(item); err != nil {
					return nil, err
				}
			}
			continue
		}
		prefix := item[:open]
		for _, r := range strings.Split(item[open+1:len(item)-1], ",") {
			lo, hi, isRange := strings.Cut(r, "-")
			if !isRange {
				if err := push(prefix + lo); err != nil {
					return nil, err
				}
				continue
			}
			a, err1 := strconv.Atoi(lo)
			b, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil || b < a {
				if err := push(prefix + r); err != nil {
					return nil, err
				}
				continue
			}
			if b-a >= maxHostlistNames-len(out) {
				return nil, errHostlistTooLarge
			}
			for n := a; n <= b; n++ {
				out = append(out, fmt.Sprintf("%s%0*d", prefix, len(lo), n))
			}
		}
	}
	return out, nil
}

func splitOutsideBrackets(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// keyValues parses key=value operands case-insensitively on the key.
func keyValues(args []string) map[string]string {
	kv := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		kv[strings.ToLower(k)] = v
	}
	return kv
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
