package simulator

import (
	"fmt"
	"sort"
	"sync"
)

// Registry routes base command names to simulators.
type Registry struct {
	mu         sync.RWMutex
	simulators map[string]Simulator
	commands   map[string]string // command -> simulator name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		simulators: make(map[string]Simulator),
		commands:   make(map[string]string),
	}
}

// Register adds sim under every name in its Metadata().Commands. A command
// already owned by a different simulator is an error and nothing is
// registered.
func (r *Registry) Register(sim Simulator) error {
	md := sim.Metadata()
	if md.Name == "" {
		return fmt.Errorf("simulator has no name")
	}
	if len(md.Commands) == 0 {
		return fmt.Errorf("simulator %s declares no commands", md.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range md.Commands {
		if owner, exists := r.commands[c]; exists && owner != md.Name {
			return fmt.Errorf("command %q is already provided by %s", c, owner)
		}
	}

	r.simulators[md.Name] = sim
	for _, c := range md.Commands {
		r.commands[c] = md.Name
	}
	return nil
}

// MustRegister is Register for static wiring; it panics on conflict.
func (r *Registry) MustRegister(sims ...Simulator) *Registry {
	for _, s := range sims {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the simulator responsible for base.
func (r *Registry) Get(base string) (Simulator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.commands[base]
	if !ok {
		return nil, false
	}
	sim, ok := r.simulators[name]
	return sim, ok
}

// List returns all routable command names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for c := range r.commands {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// Simulators returns each registered simulator once, sorted by name.
func (r *Registry) Simulators() []Simulator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Simulator, 0, len(r.simulators))
	for _, s := range r.simulators {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata().Name < out[j].Metadata().Name
	})
	return out
}

// AllCompletions returns the words offered for tab completion of the first
// token.
func (r *Registry) AllCompletions() []string {
	return r.List()
}
