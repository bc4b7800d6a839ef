// SPDX-License-Identifier: MPL-2.0

package pathreg

import "sync"

// MemoryStore is an in-process Store, used for dry runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	dirs  []string
	saves int
}

// NewMemoryStore creates a MemoryStore seeded with dirs.
func NewMemoryStore(dirs ...string) *MemoryStore {
	return &MemoryStore{dirs: dirs}
}

// Load returns a copy of the stored directories.
func (m *MemoryStore) Load() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.dirs...), nil
}

// Save replaces the stored directories.
func (m *MemoryStore) Save(dirs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs = append([]string{}, dirs...)
	m.saves++
	return nil
}

// Location implements Store.
func (m *MemoryStore) Location() string { return "memory" }

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
