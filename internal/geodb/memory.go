package geodb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danieljhkim/gridprep/internal/gis"
)

// Memory is the transient "memory/" workspace. Results written here live
// only as long as the process and are expected to be deleted by the caller.
type Memory struct {
	mu    sync.Mutex
	items map[string]*gis.FeatureClass
}

// NewMemory creates an empty memory workspace.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*gis.FeatureClass)}
}

// Load returns the named scratch feature class.
func (m *Memory) Load(name string) (*gis.FeatureClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fc, ok := m.items[name]
	if !ok {
		return nil, fmt.Errorf("feature class %s/%s: %w", gis.MemoryWorkspace, name, gis.ErrNotFound)
	}
	return fc, nil
}

// Save stores fc under name, replacing any previous entry.
func (m *Memory) Save(name string, fc *gis.FeatureClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[name] = fc
}

// Delete removes the named entry if present.
func (m *Memory) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, name)
}

// Exists reports whether the named entry is present.
func (m *Memory) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[name]
	return ok
}

// Names lists the entries currently held, sorted.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.items))
	for name := range m.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
