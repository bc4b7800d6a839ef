// SPDX-License-Identifier: MPL-2.0

package pathreg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

type (
	// Store reads and writes the persisted list of extra search-path
	// directories. Implementations are host specific: a shell profile block
	// on Unix, the registry on Windows.
	Store interface {
		Load() ([]string, error)
		Save(dirs []string) error
		// Location describes where the directories are persisted, for logs.
		Location() string
	}

	// Registry is an append-only, deduplicated view of the search path.
	Registry struct {
		mu       sync.Mutex
		store    Store
		current  []string
		pending  []string
		setenv   func(key, value string) error
		logger   *log.Logger
		foldCase bool
	}

	// Option configures a Registry during construction.
	Option func(*Registry)
)

// WithLogger sets the logger used to report additions and commits.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithInitialPath replaces the process PATH as the starting search path.
// The process environment is left untouched when this option is used, which
// keeps tests hermetic.
func WithInitialPath(dirs ...string) Option {
	return func(r *Registry) {
		r.current = dirs
		r.setenv = func(string, string) error { return nil }
	}
}

// New creates a Registry seeded from the process PATH, followed by any
// directories earlier runs persisted to store that the PATH still lacks.
// Those are exported to the process PATH as well, so a console opened
// before the last commit still resolves the installed tools.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		current:  filepath.SplitList(os.Getenv("PATH")),
		setenv:   os.Setenv,
		logger:   log.New(io.Discard),
		foldCase: runtime.GOOS == "windows",
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mergePersisted()
	return r
}

func (r *Registry) mergePersisted() {
	persisted, err := r.store.Load()
	if err != nil {
		r.logger.Warn("reading persisted search path", "location", r.store.Location(), "err", err)
		return
	}

	var restored int
	for _, dir := range persisted {
		if strings.TrimSpace(dir) == "" || r.contains(r.current, dir) {
			continue
		}
		r.current = append(r.current, dir)
		restored++
	}
	if restored == 0 {
		return
	}
	if err := r.setenv("PATH", strings.Join(r.current, string(os.PathListSeparator))); err != nil {
		r.logger.Warn("updating PATH", "err", err)
	}
	r.logger.Debug("restored persisted search path entries", "location", r.store.Location(), "count", restored)
}

// Current returns a copy of the session search path.
func (r *Registry) Current() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.current))
	copy(out, r.current)
	return out
}

// Pending returns the directories added during this run that Commit will
// persist.
func (r *Registry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.pending))
	copy(out, r.pending)
	return out
}

// AppendUnique adds dir to the end of the search path unless an equivalent
// entry already exists. It reports whether the path changed. The process
// PATH is updated right away so that subsequent lookups and child processes
// see the new directory.
func (r *Registry) AppendUnique(dir string) (bool, error) {
	if strings.TrimSpace(dir) == "" {
		return false, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", dir, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.contains(r.current, abs) {
		return false, nil
	}

	next := append(append([]string{}, r.current...), abs)
	if err := r.setenv("PATH", strings.Join(next, string(os.PathListSeparator))); err != nil {
		return false, fmt.Errorf("updating PATH: %w", err)
	}
	r.current = next
	r.pending = append(r.pending, abs)
	r.logger.Info("registered search path entry", "dir", abs)
	return true, nil
}

// Commit merges the pending directories into the persisted store. The store
// is re-read first so concurrent edits made outside this run survive.
func (r *Registry) Commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return nil
	}

	persisted, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("reading persisted search path from %s: %w", r.store.Location(), err)
	}

	merged := persisted
	for _, dir := range r.pending {
		if !r.contains(merged, dir) {
			merged = append(merged, dir)
		}
	}
	if len(merged) == len(persisted) {
		r.pending = nil
		return nil
	}

	if err := r.store.Save(merged); err != nil {
		return fmt.Errorf("persisting search path to %s: %w", r.store.Location(), err)
	}
	r.logger.Info("persisted search path", "location", r.store.Location(), "added", len(merged)-len(persisted))
	r.pending = nil
	return nil
}

func (r *Registry) contains(list []string, dir string) bool {
	want := normalize(dir, r.foldCase)
	for _, d := range list {
		if normalize(d, r.foldCase) == want {
			return true
		}
	}
	return false
}

func normalize(dir string, foldCase bool) string {
	d := filepath.Clean(strings.TrimSpace(dir))
	if foldCase {
		d = strings.ToLower(d)
	}
	return d
}
