package scenario

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dcsim/internal/clock"
	"dcsim/internal/cluster"
	"dcsim/pkg/logging"
)

// Manager owns a keyed set of contexts and an optional active one.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]*Context
	activeID string
	clock    clock.Clock
}

// NewManager creates an empty manager. A nil clock uses real time.
func NewManager(clk clock.Clock) *Manager {
	return &Manager{
		contexts: make(map[string]*Context),
		clock:    clock.OrReal(clk),
	}
}

// CreateContext deep-copies base into a new context registered under id,
// replacing any context with the same id. An empty id is replaced by a
// generated one.
func (m *Manager) CreateContext(id string, base *cluster.State) (*Context, error) {
	if err := checkSnapshot(base); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}

	ctx := newContext(id, base, m.clock)

	m.mu.Lock()
	_, replaced := m.contexts[id]
	m.contexts[id] = ctx
	m.mu.Unlock()

	if replaced {
		logging.Info("Scenario", "Replaced context %s", id)
	} else {
		logging.Info("Scenario", "Created context %s from snapshot %q", id, base.Name)
	}
	return ctx, nil
}

// GetOrCreateContext returns the existing context for id untouched, or
// creates one from base.
func (m *Manager) GetOrCreateContext(id string, base *cluster.State) (*Context, error) {
	if ctx, ok := m.GetContext(id); ok {
		return ctx, nil
	}
	return m.CreateContext(id, base)
}

// GetContext returns the context registered under id.
func (m *Manager) GetContext(id string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.contexts[id]
	return ctx, ok
}

// SetActiveContext makes id the active context. An empty id clears the
// active pointer. An unknown id also clears it and returns
// ErrContextNotFound.
func (m *Manager) SetActiveContext(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		m.activeID = ""
		return nil
	}
	if _, ok := m.contexts[id]; !ok {
		m.activeID = ""
		return fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	m.activeID = id
	return nil
}

// ActiveContext returns the active context, or nil.
func (m *Manager) ActiveContext() *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeID == "" {
		return nil
	}
	return m.contexts[m.activeID]
}

// DeleteContext removes id and clears the active pointer if it pointed
// there. It reports whether a context was removed.
func (m *Manager) DeleteContext(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.contexts[id]; !ok {
		return false
	}
	delete(m.contexts, id)
	if m.activeID == id {
		m.activeID = ""
	}
	logging.Info("Scenario", "Deleted context %s", id)
	return true
}

// ClearAll removes every context.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts = make(map[string]*Context)
	m.activeID = ""
}

// ListContexts returns the registered ids, sorted.
func (m *Manager) ListContexts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.contexts))
	for id := range m.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Restore rebuilds a context from a checkpoint and registers it, replacing
// any context with the same id.
func (m *Manager) Restore(cp Checkpoint) (*Context, error) {
	if cp.ScenarioID == "" {
		return nil, fmt.Errorf("%w: checkpoint has no scenario id", ErrInvalidSnapshot)
	}
	if err := checkSnapshot(cp.Initial); err != nil {
		return nil, err
	}
	if cp.Current == nil {
		cp.Current = cp.Initial
	}

	ctx := newContext(cp.ScenarioID, cp.Initial, m.clock)
	ctx.state = cp.Current.DeepCopy()
	for _, mut := range cp.Mutations {
		ctx.mutations = append(ctx.mutations, mut.clone())
	}
	ctx.readonly = cp.Readonly
	if !cp.CreatedAt.IsZero() {
		ctx.createdAt = cp.CreatedAt
	}

	m.mu.Lock()
	m.contexts[cp.ScenarioID] = ctx
	m.mu.Unlock()

	logging.Info("Scenario", "Restored context %s with %d mutations", cp.ScenarioID, len(cp.Mutations))
	return ctx, nil
}

func checkSnapshot(base *cluster.State) error {
	if base == nil || (base.Name == "" && len(base.Nodes) == 0) {
		return ErrInvalidSnapshot
	}
	if err := base.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return nil
}
