package keystore

import (
	"sort"
	"sync"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// Memory is an in-process Store used in tests and mock mode. Nothing it holds
// survives the process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
	writes  int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.entries[name]
	if !ok {
		return nil, cfgerrors.NotFound("memory get", name)
	}
	return append([]byte(nil), payload...), nil
}

// Set implements Store.
func (m *Memory) Set(name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[name] = append([]byte(nil), payload...)
	m.writes++
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, name)
	return nil
}

// Names returns the stored names in sorted order.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Writes returns how many Set calls succeeded.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Clear removes every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
}

// Ensure Memory implements Store
var _ Store = (*Memory)(nil)
