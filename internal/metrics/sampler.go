package metrics

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"dcsim/internal/cluster"
	"dcsim/internal/scenario"
	"dcsim/pkg/logging"
)

const subsystem = "Sampler"

// DefaultInterval is the sampling period used when none is configured.
const DefaultInterval = 5 * time.Second

// Target is the part of a scenario context the sampler drives.
type Target interface {
	Cluster() *cluster.State
	UpdateGPU(nodeID string, gpuID int, update cluster.GPUUpdate, command ...string) scenario.Outcome
}

// Sampler periodically drifts GPU telemetry so that repeated nvidia-smi
// calls look alive. Critical GPUs are left untouched so injected faults
// stay visible.
type Sampler struct {
	mu       sync.Mutex
	target   Target
	interval time.Duration
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSampler creates a stopped sampler. The seed makes the drift
// reproducible.
func NewSampler(target Target, interval time.Duration, seed int64) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		target:   target,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Start launches the sampling loop. Calling Start on a running sampler does
// nothing.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(s.stopCh, s.doneCh)
	logging.Debug(subsystem, "Started with interval %s", s.interval)
}

// Stop ends the sampling loop and waits for it to exit. It is safe to call
// any number of times, including on a sampler that never started.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	logging.Debug(subsystem, "Stopped")
}

// Running reports whether the loop is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sampler) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick applies one round of drift and returns the number of GPUs updated.
func (s *Sampler) Tick() int {
	state := s.target.Cluster()

	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	updated := 0
	for _, n := range state.Nodes {
		for _, g := range n.GPUs {
			if g.Health == cluster.HealthCritical {
				continue
			}
			update := s.drift(g)
			if s.target.UpdateGPU(n.ID, g.ID, update, scenario.SamplerCommand).Applied() {
				updated++
			}
		}
	}
	return updated
}

// drift returns the next telemetry values for g. Power follows
// utilization between the idle floor and the board limit.
func (s *Sampler) drift(g cluster.GPU) cluster.GPUUpdate {
	util := clamp(g.Utilization+s.jitter(5), 0, 100)
	temp := clamp(g.Temperature+s.jitter(1.5)+(util-g.Utilization)*0.05, 25, 95)

	limit := g.PowerLimit
	if limit <= 0 {
		limit = 400
	}
	power := clamp(idlePower+(limit-idlePower)*util/100+s.jitter(3), 0, limit)

	return cluster.GPUUpdate{
		Temperature: cluster.Ptr(round1(temp)),
		Utilization: cluster.Ptr(round1(util)),
		PowerDraw:   cluster.Ptr(round1(power)),
	}
}

const idlePower = 60.0

// jitter returns a value uniformly distributed in [-amp, amp).
func (s *Sampler) jitter(amp float64) float64 {
	return (s.rng.Float64()*2 - 1) * amp
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
