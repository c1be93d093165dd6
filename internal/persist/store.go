package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dcsim/pkg/logging"
)

const subsystem = "Persist"

// DefaultDelay is the write-coalescing window used when none is given.
const DefaultDelay = 500 * time.Millisecond

const fileExt = ".json"

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("store is closed")

// Store is a key/value store backed by one file per key. Writes are
// debounced: a Set schedules the write after the store's delay, and further
// Sets of the same key within that window replace the value and restart the
// window, so a burst costs one physical write of the final value. Reads and
// deletes are immediate.
type Store struct {
	mu      sync.Mutex
	dir     string
	delay   time.Duration
	pending map[string]*pendingWrite
	closed  bool
	writes  int
}

type pendingWrite struct {
	value []byte
	timer *time.Timer
}

// New creates a store rooted at dir, creating the directory if needed.
// A non-positive delay selects DefaultDelay.
func New(dir string, delay time.Duration) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Store{
		dir:     dir,
		delay:   delay,
		pending: make(map[string]*pendingWrite),
	}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// Set schedules value to be written under key.
func (s *Store) Set(key string, value []byte) error {
	key = sanitizeKey(key)
	buf := append([]byte(nil), value...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if p, ok := s.pending[key]; ok {
		p.value = buf
		p.timer.Reset(s.delay)
		return nil
	}

	p := &pendingWrite{value: buf}
	p.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Delete or Flush may have raced with the timer.
		if s.pending[key] != p {
			return
		}
		delete(s.pending, key)
		if err := s.writeLocked(key, p.value); err != nil {
			logging.Error(subsystem, err, "Debounced write of %s failed", key)
		}
	})
	s.pending[key] = p
	return nil
}

// Get returns the value for key. A pending value wins over the file.
func (s *Store) Get(key string) ([]byte, bool, error) {
	key = sanitizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[key]; ok {
		return append([]byte(nil), p.value...), true, nil
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Delete cancels any pending write of key and removes its file.
func (s *Store) Delete(key string) error {
	key = sanitizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	logging.Debug(subsystem, "Deleted %s", key)
	return nil
}

// Keys lists stored and pending keys, sorted.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.pending))
	for k := range s.pending {
		seen[k] = true
	}
	files, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	for _, f := range files {
		seen[strings.TrimSuffix(filepath.Base(f), fileExt)] = true
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Flush writes every pending value now.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes pending writes and rejects further Sets. Close is
// idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.flushLocked()
}

// Writes returns the number of physical writes performed so far.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) flushLocked() error {
	var errs []error
	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
		if err := s.writeLocked(key, p.value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeLocked writes through a temporary file so readers never observe a
// partial value.
func (s *Store) writeLocked(key string, value []byte) error {
	target := s.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	s.writes++
	logging.Debug(subsystem, "Wrote %s (%d bytes)", key, len(value))
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

// sanitizeKey maps a key onto a safe file name.
func sanitizeKey(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, key)
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_.")
	if sanitized == "" {
		sanitized = "unnamed"
	}
	return sanitized
}
