package scoring

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"dcsim/internal/cluster"
	"dcsim/internal/template"
	"dcsim/pkg/logging"
)

const librarySubsystem = "ChallengeLibrary"

// DefaultReloadDelay is how long Watch waits for further changes before
// reloading.
const DefaultReloadDelay = 250 * time.Millisecond

// File is the on-disk layout of a challenge file. A file may hold any mix
// of challenges and exams.
type File struct {
	Challenges []Challenge     `yaml:"challenges"`
	Exams      []PracticalExam `yaml:"exams"`
}

// Library holds the challenges and exams loaded from a directory.
type Library struct {
	mu         sync.RWMutex
	dir        string
	challenges map[string]Challenge
	exams      map[string]PracticalExam
	templates  *template.Engine

	// ReloadDelay debounces Watch; zero means DefaultReloadDelay.
	ReloadDelay time.Duration
}

// NewLibrary creates an empty library rooted at dir. Call Load to read it.
func NewLibrary(dir string) *Library {
	return &Library{
		dir:        dir,
		challenges: make(map[string]Challenge),
		exams:      make(map[string]PracticalExam),
		templates:  template.New(),
	}
}

// Dir returns the directory the library loads from.
func (l *Library) Dir() string { return l.dir }

// Load reads every YAML file below the library directory. On error the
// previously loaded content is kept.
func (l *Library) Load() error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("failed to stat challenge path: %w", err)
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isYAMLFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk directory %s: %w", l.dir, err)
		}
	} else {
		files = append(files, l.dir)
	}

	challenges := make(map[string]Challenge)
	exams := make(map[string]PracticalExam)
	var errs DefinitionErrors
	for _, path := range files {
		f, err := l.loadFile(path)
		if err != nil {
			return err
		}
		for _, ch := range f.Challenges {
			if _, dup := challenges[ch.ID]; dup {
				errs.add(KindChallenge, ch.ID, "id", "duplicate challenge id in %s", path)
				continue
			}
			challenges[ch.ID] = ch
		}
		for _, ex := range f.Exams {
			if _, dup := exams[ex.ID]; dup {
				errs.add(KindExam, ex.ID, "id", "duplicate exam id in %s", path)
				continue
			}
			exams[ex.ID] = ex
		}
	}
	for _, ex := range exams {
		for _, id := range ex.ChallengeIDs {
			if _, ok := challenges[id]; !ok {
				errs.add(KindExam, ex.ID, "challenges", "unknown challenge %q", id)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid challenge library %s: %w", l.dir, errs)
	}

	l.mu.Lock()
	l.challenges = challenges
	l.exams = exams
	l.mu.Unlock()

	logging.Info(librarySubsystem, "Loaded %d challenges and %d exams from %s", len(challenges), len(exams), l.dir)
	return nil
}

func (l *Library) loadFile(path string) (File, error) {
	var f File
	content, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &f); err != nil {
		return f, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}
	for i := range f.Challenges {
		if err := l.render(&f.Challenges[i]); err != nil {
			return f, fmt.Errorf("invalid challenge in %s: %w", path, err)
		}
		if err := ValidateChallenge(f.Challenges[i]); err != nil {
			return f, fmt.Errorf("invalid challenge in %s: %w", path, err)
		}
	}
	for _, ex := range f.Exams {
		if err := ValidateExam(ex); err != nil {
			return f, fmt.Errorf("invalid exam in %s: %w", path, err)
		}
	}
	logging.Debug(librarySubsystem, "Loaded %s: %d challenges, %d exams", path, len(f.Challenges), len(f.Exams))
	return f, nil
}

// render expands template actions in the text fields of ch using ch.Vars.
func (l *Library) render(ch *Challenge) error {
	if len(ch.Vars) == 0 {
		return nil
	}
	vars := template.MergeContexts(ch.Vars)
	targets := []*string{&ch.Title, &ch.Description}
	for i := range ch.Hints {
		targets = append(targets, &ch.Hints[i])
	}
	for i := range ch.Objectives {
		targets = append(targets, &ch.Objectives[i].Description, &ch.Objectives[i].Pattern)
	}
	if err := l.templates.RenderAll(vars, targets...); err != nil {
		return fmt.Errorf("challenge %s: %w", ch.ID, err)
	}
	return nil
}

// Challenge returns the challenge with the given id.
func (l *Library) Challenge(id string) (Challenge, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ch, ok := l.challenges[id]
	return ch, ok
}

// Challenges returns every loaded challenge sorted by id.
func (l *Library) Challenges() []Challenge {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Challenge, 0, len(l.challenges))
	for _, ch := range l.challenges {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Exam returns the exam with the given id.
func (l *Library) Exam(id string) (PracticalExam, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ex, ok := l.exams[id]
	return ex, ok
}

// Exams returns every loaded exam sorted by id.
func (l *Library) Exams() []PracticalExam {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]PracticalExam, 0, len(l.exams))
	for _, ex := range l.exams {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Watch reloads the library whenever a YAML file in its directory changes.
// Bursts of events within ReloadDelay collapse into one reload. onReload, if
// set, receives the result of every reload. Watch blocks until ctx is done.
func (l *Library) Watch(ctx context.Context, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}
	logging.Info(librarySubsystem, "Watching %s for challenge changes", l.dir)

	delay := l.ReloadDelay
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	debounce := time.NewTimer(delay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAMLFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			logging.Debug(librarySubsystem, "Change detected: %s %s", event.Op, event.Name)
			debounce.Reset(delay)

		case <-debounce.C:
			err := l.Load()
			if err != nil {
				logging.Error(librarySubsystem, err, "Reload of %s failed, keeping previous challenges", l.dir)
			}
			if onReload != nil {
				onReload(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error(librarySubsystem, err, "Filesystem watcher error")
		}
	}
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ValidateChallenge checks a challenge definition.
func ValidateChallenge(ch Challenge) error {
	var errs DefinitionErrors
	if ch.ID == "" {
		errs.add(KindChallenge, ch.ID, "id", "challenge id is required")
	}
	if ch.Title == "" {
		errs.add(KindChallenge, ch.ID, "title", "challenge title is required")
	}
	if len(ch.Objectives) == 0 {
		errs.add(KindChallenge, ch.ID, "objectives", "challenge must have at least one objective")
	}

	seen := make(map[string]bool)
	for i, o := range ch.Objectives {
		field := fmt.Sprintf("objectives[%d]", i)
		if o.ID == "" {
			errs.add(KindChallenge, ch.ID, field+".id", "objective id is required")
		} else if seen[o.ID] {
			errs.add(KindChallenge, ch.ID, field+".id", "duplicate objective id %q", o.ID)
		}
		seen[o.ID] = true
		if o.Points <= 0 {
			errs.add(KindChallenge, ch.ID, field+".points", "points must be positive, got %d", o.Points)
		}
		if strings.TrimSpace(o.Pattern) == "" {
			errs.add(KindChallenge, ch.ID, field+".pattern", "pattern is required")
		}
		switch o.ValidationType {
		case ValidationCommand, ValidationOutput:
		case ValidationState:
			if _, err := CompileStateExpr(o.Pattern); err != nil {
				errs.add(KindChallenge, ch.ID, field+".pattern", "state expression does not compile: %v", err)
			}
		default:
			errs.add(KindChallenge, ch.ID, field+".type", "unknown type %q, want command, output or state", o.ValidationType)
		}
	}

	if tb := ch.TimeBonus; tb != nil {
		if tb.Threshold <= 0 {
			errs.add(KindChallenge, ch.ID, "timeBonus.threshold", "threshold must be positive, got %v", tb.Threshold)
		}
		if tb.BonusPoints < 0 {
			errs.add(KindChallenge, ch.ID, "timeBonus.bonusPoints", "bonus points cannot be negative, got %d", tb.BonusPoints)
		}
	}

	if s := ch.Setup; s != nil {
		if s.Preset != "" {
			if _, err := cluster.NewPreset(s.Preset, s.Nodes); err != nil {
				errs.add(KindChallenge, ch.ID, "setup.preset", "%v", err)
			}
		}
		if s.Nodes < 0 {
			errs.add(KindChallenge, ch.ID, "setup.nodes", "nodes cannot be negative, got %d", s.Nodes)
		}
		for i, f := range s.Faults {
			if err := f.Validate(); err != nil {
				errs.add(KindChallenge, ch.ID, fmt.Sprintf("setup.faults[%d]", i), "%v", err)
			}
		}
	}
	return errs.orNil()
}

// ValidateExam checks an exam definition on its own. References to
// challenges are checked by Library.Load.
func ValidateExam(ex PracticalExam) error {
	var errs DefinitionErrors
	if ex.ID == "" {
		errs.add(KindExam, ex.ID, "id", "exam id is required")
	}
	if len(ex.ChallengeIDs) == 0 {
		errs.add(KindExam, ex.ID, "challenges", "exam must list at least one challenge")
	}
	if ex.PassingScore < 0 || ex.PassingScore > 100 {
		errs.add(KindExam, ex.ID, "passingScore", "passing score must be between 0 and 100, got %v", ex.PassingScore)
	}
	return errs.orNil()
}
