package tools

import (
	"fmt"
	"strconv"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/parser"
	"dcsim/internal/simulator"
)

const dockerUsage = `Usage:  docker [OPTIONS] COMMAND

Commands:
  ps          List containers
  images      List images
  run         Create and run a new container from an image
  version     Show the Docker version information
`

type dockerVerb int

const (
	dockerNone dockerVerb = iota
	dockerPs
	dockerImages
	dockerRun
	dockerVersion
	dockerUnknown
)

func parseDockerVerb(s string) dockerVerb {
	switch s {
	case "":
		return dockerNone
	case "ps":
		return dockerPs
	case "images":
		return dockerImages
	case "run":
		return dockerRun
	case "version":
		return dockerVersion
	default:
		return dockerUnknown
	}
}

type dockerImage struct {
	repo string
	tag  string
	size string
}

var localImages = []dockerImage{
	{"nvcr.io/nvidia/cuda", "12.2.0-base-ubuntu22.04", "243MB"},
	{"nvcr.io/nvidia/pytorch", "23.10-py3", "21.4GB"},
	{"nvcr.io/nvidia/k8s/dcgm-exporter", "3.3.0-3.2.0-ubuntu22.04", "1.05GB"},
	{"ubuntu", "22.04", "77.8MB"},
}

// dockerValueFlags are the run options that take a separate value.
var dockerValueFlags = map[string]bool{
	"--gpus": true, "--name": true, "-e": true, "--env": true, "-v": true,
	"--volume": true, "--shm-size": true, "--ipc": true, "--network": true,
	"-w": true, "--workdir": true, "--runtime": true, "--entrypoint": true,
	"-u": true, "--user": true,
}

// Docker simulates the Docker CLI with the NVIDIA container runtime.
type Docker struct {
	simulator.Base
	// programs are the simulators reachable as a container's command
	programs map[string]simulator.Simulator
}

// NewDocker creates the docker simulator. The given simulators can be run
// inside GPU containers.
func NewDocker(programs ...simulator.Simulator) *Docker {
	d := &Docker{
		Base: simulator.Base{Meta: simulator.Metadata{
			Name:        "docker",
			Version:     "24.0.7",
			Description: "Docker container runtime",
			Commands:    []string{"docker"},
			Usage:       dockerUsage,
		}},
		programs: make(map[string]simulator.Simulator),
	}
	for _, p := range programs {
		for _, c := range p.Metadata().Commands {
			d.programs[c] = p
		}
	}
	return d
}

// Execute implements simulator.Simulator.
func (d *Docker) Execute(cmd parser.ParsedCommand, cmdCtx simulator.CommandContext, state simulator.StateAccessor) simulator.Result {
	verb := parseDockerVerb(cmd.Subcommand())
	// container arguments may carry their own --help
	if verb != dockerRun {
		if r, done := d.Preflight(cmd); done {
			return r
		}
	}

	switch verb {
	case dockerNone:
		return simulator.OK(dockerUsage)
	case dockerPs:
		return simulator.OK("CONTAINER ID   IMAGE     COMMAND   CREATED   STATUS    PORTS     NAMES\n")
	case dockerImages:
		return simulator.OK(dockerImageList())
	case dockerVersion:
		return simulator.OK(dockerVersionText(d.Meta.Version))
	case dockerRun:
		return d.run(cmd, cmdCtx, state)
	default:
		return simulator.Fail(simulator.ExitUsage, "docker: '%s' is not a docker command.\nSee 'docker --help'\n", cmd.Subcommand())
	}
}

func imageID(img dockerImage) string {
	return strings.ReplaceAll(cluster.StableID("docker", img.repo+":"+img.tag).String(), "-", "")[:12]
}

// containerID derives a 64 hex digit id from the command line that
// started the container.
func containerID(raw string) string {
	a := cluster.StableID("container", raw)
	b := cluster.StableID("container", a.String())
	return strings.ReplaceAll(a.String()+b.String(), "-", "")
}

func dockerImageList() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-34s %-25s %-14s %-13s %s\n", "REPOSITORY", "TAG", "IMAGE ID", "CREATED", "SIZE")
	for _, img := range localImages {
		fmt.Fprintf(&b, "%-34s %-25s %-14s %-13s %s\n", img.repo, img.tag, imageID(img), "2 months ago", img.size)
	}
	return b.String()
}

func dockerVersionText(v string) string {
	return fmt.Sprintf(`Client: Docker Engine - Community
 Version:           %[1]s
 API version:       1.43
 OS/Arch:           linux/amd64

Server: Docker Engine - Community
 Engine:
  Version:          %[1]s
  API version:      1.43 (minimum version 1.12)
 nvidia:
  Version:          1.14.3
`, v)
}

type runSpec struct {
	gpus     string
	detach   bool
	image    string
	command  []string
	hasImage bool
}

// parseRun walks the raw tokens after "run" because the generic parser
// cannot tell the image apart from a flag value, nor the container command
// apart from docker's own options.
func parseRun(raw string) runSpec {
	toks := parser.Tokenize(raw)
	i := 0
	for i < len(toks) && toks[i] != "run" {
		i++
	}
	i++

	var spec runSpec
	for ; i < len(toks); i++ {
		t := toks[i]
		if !strings.HasPrefix(t, "-") || t == "-" {
			spec.image = t
			spec.hasImage = true
			spec.command = toks[i+1:]
			return spec
		}
		name, value, hasValue := strings.Cut(t, "=")
		if !hasValue && dockerValueFlags[name] && i+1 < len(toks) {
			i++
			value = toks[i]
		}
		switch name {
		case "--gpus":
			spec.gpus = value
		case "-d", "--detach":
			spec.detach = true
		}
	}
	return spec
}

func findImage(ref string) (dockerImage, bool) {
	repo, tag := ref, "latest"
	if i := strings.LastIndex(ref, ":"); i > strings.LastIndex(ref, "/") {
		repo, tag = ref[:i], ref[i+1:]
	}
	for _, img := range localImages {
		if img.repo == repo && img.tag == tag {
			return img, true
		}
	}
	return dockerImage{}, false
}

func (d *Docker) run(cmd parser.ParsedCommand, cmdCtx simulator.CommandContext, state simulator.StateAccessor) simulator.Result {
	spec := parseRun(cmd.Raw)
	if !spec.hasImage {
		return simulator.Fail(125, "\"docker run\" requires at least 1 argument.\nSee 'docker run --help'.\n")
	}
	if _, ok := findImage(spec.image); !ok {
		return simulator.Fail(125, "Unable to find image '%s' locally\ndocker: Error response from daemon: pull access denied for %s, repository does not exist or may require 'docker login'.\n", spec.image, spec.image)
	}

	if len(spec.command) == 0 {
		if spec.detach {
			return simulator.OK(containerID(cmd.Raw) + "\n")
		}
		return simulator.OK("")
	}

	program := spec.command[0]
	if program == "echo" {
		return simulator.OK(strings.Join(spec.command[1:], " ") + "\n")
	}
	sim, ok := d.programs[program]
	if !ok || spec.gpus == "" {
		return simulator.Fail(simulator.ExitNotFound,
			"docker: Error response from daemon: failed to create task for container: exec: \"%s\": executable file not found in $PATH: unknown.\n", program)
	}

	node, ok := simulator.ResolveNode(state, cmdCtx, "")
	if !ok {
		return simulator.Fail(125, "docker: Error response from daemon: could not select device driver \"\" with capabilities: [[gpu]].\n")
	}
	visible, err := visibleGPUs(node, spec.gpus)
	if err != nil {
		return simulator.Fail(125, "docker: Error response from daemon: %v.\n", err)
	}

	inner := parser.Parse(joinQuoted(spec.command))
	return simulator.Run(sim, inner, cmdCtx, gpuView{StateAccessor: state, visible: visible})
}

func visibleGPUs(node cluster.Node, spec string) (map[int]bool, error) {
	visible := make(map[int]bool)
	switch {
	case spec == "all":
		for _, g := range node.GPUs {
			visible[g.ID] = true
		}
	case strings.HasPrefix(spec, "device="):
		for _, id := range strings.Split(strings.TrimPrefix(spec, "device="), ",") {
			g, ok := findGPU(node, strings.TrimSpace(id))
			if !ok {
				return nil, fmt.Errorf("unknown device id: %s", id)
			}
			visible[g.ID] = true
		}
	default:
		n, err := strconv.Atoi(spec)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid --gpus value %q", spec)
		}
		if n > len(node.GPUs) {
			return nil, fmt.Errorf("requested %d GPUs but only %d available", n, len(node.GPUs))
		}
		for _, g := range node.GPUs[:n] {
			visible[g.ID] = true
		}
	}
	return visible, nil
}

func joinQuoted(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		if strings.ContainsAny(w, " \t'") {
			out[i] = `"` + w + `"`
		} else {
			out[i] = w
		}
	}
	return strings.Join(out, " ")
}

// gpuView restricts the GPUs a container can see.
type gpuView struct {
	simulator.StateAccessor
	visible map[int]bool
}

func (v gpuView) filter(gpus []cluster.GPU) []cluster.GPU {
	out := make([]cluster.GPU, 0, len(gpus))
	for _, g := range gpus {
		if v.visible[g.ID] {
			out = append(out, g)
		}
	}
	return out
}

func (v gpuView) Cluster() *cluster.State {
	c := v.StateAccessor.Cluster()
	for i := range c.Nodes {
		c.Nodes[i].GPUs = v.filter(c.Nodes[i].GPUs)
	}
	return c
}

func (v gpuView) Node(id string) (cluster.Node, bool) {
	n, ok := v.StateAccessor.Node(id)
	if ok {
		n.GPUs = v.filter(n.GPUs)
	}
	return n, ok
}

func (v gpuView) GPU(nodeID string, gpuID int) (cluster.GPU, bool) {
	if !v.visible[gpuID] {
		return cluster.GPU{}, false
	}
	return v.StateAccessor.GPU(nodeID, gpuID)
}
