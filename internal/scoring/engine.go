package scoring

import (
	"regexp"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"dcsim/internal/clock"
	"dcsim/pkg/logging"
)

const subsystem = "Scoring"

// minBonusRatio is the completion ratio below which no time bonus is paid.
const minBonusRatio = 0.5

// matcher decides whether one observation satisfies an objective.
type matcher func(command, output string, env func() StateEnv) bool

// Engine grades one running challenge at a time against the stream of
// commands a user types.
type Engine struct {
	mu    sync.Mutex
	clock clock.Clock
	state StateReader

	challenge *Challenge
	result    *ChallengeResult
	matchers  map[string]matcher
	hintsSeen map[int]bool
}

// NewEngine creates an engine. A nil clock uses wall time.
func NewEngine(clk clock.Clock) *Engine {
	return &Engine{clock: clock.OrReal(clk)}
}

// SetState attaches the scenario that state objectives are evaluated
// against.
func (e *Engine) SetState(r StateReader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = r
}

// StartChallenge begins a new attempt, discarding any attempt in progress.
func (e *Engine) StartChallenge(ch Challenge) *ChallengeResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &ChallengeResult{
		ChallengeID: ch.ID,
		StartedAt:   e.clock.Now(),
		Objectives:  make(map[string]*ObjectiveResult, len(ch.Objectives)),
		TotalPoints: ch.TotalPoints(),
	}
	matchers := make(map[string]matcher, len(ch.Objectives))
	for _, o := range ch.Objectives {
		result.Objectives[o.ID] = &ObjectiveResult{ObjectiveID: o.ID}
		matchers[o.ID] = compileObjective(o)
	}

	e.challenge = &ch
	e.result = result
	e.matchers = matchers
	e.hintsSeen = make(map[int]bool)

	logging.Info(subsystem, "Started challenge %s (%d objectives, %d points)", ch.ID, len(ch.Objectives), result.TotalPoints)
	out := result.clone()
	return &out
}

// Active reports whether an attempt is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result != nil
}

// Challenge returns the challenge being attempted.
func (e *Engine) Challenge() (Challenge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.challenge == nil {
		return Challenge{}, false
	}
	return *e.challenge, true
}

// Observe grades one command and its output. It returns the ids of the
// objectives completed by this observation.
func (e *Engine) Observe(command, output string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return nil
	}

	var env *StateEnv
	lazyEnv := func() StateEnv {
		if env == nil {
			built := NewStateEnv(e.state)
			env = &built
		}
		return *env
	}

	var completed []string
	for _, o := range e.challenge.Objectives {
		res := e.result.Objectives[o.ID]
		if res.Completed {
			continue
		}
		if !e.matchers[o.ID](command, output, lazyEnv) {
			continue
		}
		res.Completed = true
		res.CompletedAt = e.clock.Now()
		res.PointsAwarded = o.Points
		res.MatchedCommand = command
		e.result.PointsEarned += o.Points
		completed = append(completed, o.ID)
		logging.Debug(subsystem, "Objective %s completed by %q (+%d)", o.ID, command, o.Points)
	}
	return completed
}

// Progress returns a copy of the running result.
func (e *Engine) Progress() (ChallengeResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return ChallengeResult{}, false
	}
	return e.result.clone(), true
}

// RequestHint returns hint k of the running challenge. Each distinct hint
// counts once towards HintsUsed.
func (e *Engine) RequestHint(k int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil || k < 0 || k >= len(e.challenge.Hints) {
		return "", false
	}
	if !e.hintsSeen[k] {
		e.hintsSeen[k] = true
		e.result.HintsUsed++
	}
	return e.challenge.Hints[k], true
}

// CompleteChallenge finalises the running attempt and returns its result.
// The second value is false when no attempt was running.
func (e *Engine) CompleteChallenge() (ChallengeResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return ChallengeResult{}, false
	}

	r := e.result
	r.CompletedAt = e.clock.Now()
	r.Duration = r.CompletedAt.Sub(r.StartedAt)
	r.Completed = true
	if tb := e.challenge.TimeBonus; tb != nil && r.Duration <= tb.Duration() && r.Ratio() >= minBonusRatio {
		r.TimeBonusEarned = tb.BonusPoints
	}

	logging.Info(subsystem, "Completed challenge %s: %d/%d points, bonus %d, %s",
		r.ChallengeID, r.PointsEarned, r.TotalPoints, r.TimeBonusEarned, r.Duration)

	out := r.clone()
	e.challenge = nil
	e.result = nil
	e.matchers = nil
	e.hintsSeen = nil
	return out, true
}

func compileObjective(o Objective) matcher {
	switch o.ValidationType {
	case ValidationCommand, ValidationOutput:
		re := compilePattern(o.Pattern)
		if o.ValidationType == ValidationCommand {
			return func(command, _ string, _ func() StateEnv) bool { return re.MatchString(command) }
		}
		return func(_, output string, _ func() StateEnv) bool { return re.MatchString(output) }
	case ValidationState:
		program, err := CompileStateExpr(o.Pattern)
		if err != nil {
			logging.Warn(subsystem, "Objective %s: state expression does not compile: %v", o.ID, err)
			return never
		}
		return func(_, _ string, env func() StateEnv) bool {
			out, err := expr.Run(program, env())
			if err != nil {
				logging.Debug(subsystem, "Objective %s: evaluation failed: %v", o.ID, err)
				return false
			}
			ok, _ := out.(bool)
			return ok
		}
	}
	logging.Warn(subsystem, "Objective %s: unknown validation type %q", o.ID, o.ValidationType)
	return never
}

func never(string, string, func() StateEnv) bool { return false }

// compilePattern compiles a case-insensitive regexp. Patterns that are not
// valid regular expressions match literally.
func compilePattern(pattern string) *regexp.Regexp {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern))
	}
	return re
}

// CompileStateExpr type-checks a boolean expression against StateEnv.
func CompileStateExpr(source string) (*vm.Program, error) {
	return expr.Compile(source, expr.Env(StateEnv{}), expr.AsBool())
}
