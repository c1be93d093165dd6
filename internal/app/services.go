package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"dcsim/internal/cluster"
	"dcsim/internal/config"
	"dcsim/internal/metrics"
	"dcsim/internal/persist"
	"dcsim/internal/scenario"
	"dcsim/internal/scoring"
	"dcsim/internal/simulator"
	"dcsim/internal/simulator/tools"
	"dcsim/internal/terminal"
	"dcsim/pkg/logging"
)

// DefaultScenarioID names the free-play scenario.
const DefaultScenarioID = "default"

// Services holds every component the shell and the CLI commands use.
//
// Initialization order:
//  1. Persist store (optional, needs StateDir)
//  2. Scenario manager with the default scenario, restored from its
//     checkpoint when one exists
//  3. Simulator registry and scoring engine
//  4. Challenge library (loaded once; the shell watches it for changes)
//  5. Sampler, created stopped
type Services struct {
	Settings config.Config
	Manager  *scenario.Manager
	Registry *simulator.Registry
	Engine   *scoring.Engine
	Library  *scoring.Library

	// Store is nil when persistence is disabled
	Store *persist.Store

	// Sampler is nil when disabled
	Sampler *metrics.Sampler
}

// InitializeServices creates the services from cfg.Settings.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := *cfg.Settings
	s := &Services{
		Settings: settings,
		Manager:  scenario.NewManager(nil),
		Registry: tools.NewRegistry(),
		Engine:   scoring.NewEngine(nil),
	}

	if settings.Persist.Enabled && settings.StateDir != "" {
		store, err := persist.New(settings.StateDir, settings.Persist.Delay)
		if err != nil {
			return nil, fmt.Errorf("failed to open state directory: %w", err)
		}
		s.Store = store
	}

	if err := s.openDefaultScenario(); err != nil {
		s.closeStore()
		return nil, err
	}

	s.Library = scoring.NewLibrary(settings.ChallengeDir)
	if settings.ChallengeDir != "" {
		if err := s.Library.Load(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.closeStore()
				return nil, fmt.Errorf("failed to load challenges: %w", err)
			}
			logging.Debug("Bootstrap", "No challenge directory at %s", settings.ChallengeDir)
		}
	}

	if settings.Sampler.Enabled {
		s.Sampler = metrics.NewSampler(activeScenario{s.Manager}, settings.Sampler.Interval, settings.Sampler.Seed)
	}

	logging.Info("Bootstrap", "Services ready: %d tools, %d challenges", len(s.Registry.List()), len(s.Library.Challenges()))
	return s, nil
}

// openDefaultScenario restores the default scenario from its checkpoint, or
// builds it from the configured preset.
func (s *Services) openDefaultScenario() error {
	if s.Store != nil {
		_, ok, err := terminal.LoadCheckpoint(s.Store, s.Manager, DefaultScenarioID)
		if err != nil {
			logging.Warn("Bootstrap", "Ignoring unreadable checkpoint: %v", err)
		}
		if ok {
			return s.Manager.SetActiveContext(DefaultScenarioID)
		}
	}

	base, err := cluster.NewPreset(s.Settings.Cluster.Preset, s.Settings.Cluster.Nodes)
	if err != nil {
		return fmt.Errorf("failed to build cluster: %w", err)
	}
	if _, err := s.Manager.CreateContext(DefaultScenarioID, base); err != nil {
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return s.Manager.SetActiveContext(DefaultScenarioID)
}

// StartChallenge prepares a fresh scenario for the challenge, makes it
// active and starts grading.
func (s *Services) StartChallenge(id string) (scoring.Challenge, error) {
	ch, ok := s.Library.Challenge(id)
	if !ok {
		return scoring.Challenge{}, fmt.Errorf("challenge %q not found", id)
	}
	sc, err := ch.Prepare(s.Manager, s.Settings.Cluster.Preset)
	if err != nil {
		return scoring.Challenge{}, err
	}
	if err := s.Manager.SetActiveContext(sc.ID()); err != nil {
		return scoring.Challenge{}, err
	}
	s.Engine.SetState(sc)
	s.Engine.StartChallenge(ch)
	return ch, nil
}

// RestoreCheckpoints loads every checkpointed scenario that is not already
// registered and returns the ids restored.
func (s *Services) RestoreCheckpoints() ([]string, error) {
	if s.Store == nil {
		return nil, nil
	}
	keys, err := s.Store.Keys()
	if err != nil {
		return nil, err
	}
	var restored []string
	for _, key := range keys {
		id, ok := strings.CutPrefix(key, terminal.CheckpointKey(""))
		if !ok {
			continue
		}
		if _, exists := s.Manager.GetContext(id); exists {
			continue
		}
		if _, ok, err := terminal.LoadCheckpoint(s.Store, s.Manager, id); err != nil {
			logging.Warn("Bootstrap", "Skipping checkpoint %s: %v", key, err)
		} else if ok {
			restored = append(restored, id)
		}
	}
	return restored, nil
}

// ResetScenario discards the checkpoint of id. The default scenario is
// rebuilt from the configured preset.
func (s *Services) ResetScenario(id string) error {
	if s.Store != nil {
		if err := s.Store.Delete(terminal.CheckpointKey(id)); err != nil {
			return err
		}
	}
	if id != DefaultScenarioID {
		s.Manager.DeleteContext(id)
		return nil
	}
	base, err := cluster.NewPreset(s.Settings.Cluster.Preset, s.Settings.Cluster.Nodes)
	if err != nil {
		return fmt.Errorf("failed to build cluster: %w", err)
	}
	if _, err := s.Manager.CreateContext(DefaultScenarioID, base); err != nil {
		return err
	}
	return s.Manager.SetActiveContext(DefaultScenarioID)
}

// NewExecutor builds a terminal executor wired to the services.
func (s *Services) NewExecutor(onProgress func([]string)) *terminal.Executor {
	return terminal.NewExecutor(terminal.Options{
		Registry:   s.Registry,
		Manager:    s.Manager,
		Engine:     s.Engine,
		Store:      s.Store,
		OnProgress: onProgress,
	})
}

// Close stops the sampler and flushes the store.
func (s *Services) Close() error {
	if s.Sampler != nil {
		s.Sampler.Stop()
	}
	return s.closeStore()
}

func (s *Services) closeStore() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// activeScenario lets the sampler follow whichever scenario is active.
type activeScenario struct {
	mgr *scenario.Manager
}

func (a activeScenario) Cluster() *cluster.State {
	if sc := a.mgr.ActiveContext(); sc != nil {
		return sc.Cluster()
	}
	return &cluster.State{}
}

func (a activeScenario) UpdateGPU(nodeID string, gpuID int, update cluster.GPUUpdate, command ...string) scenario.Outcome {
	sc := a.mgr.ActiveContext()
	if sc == nil {
		return scenario.OutcomeNoopMissingNode
	}
	return sc.UpdateGPU(nodeID, gpuID, update, command...)
}
