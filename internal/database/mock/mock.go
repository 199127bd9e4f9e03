package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/jon4hz/movin/internal/database"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	entries map[string]string

	// SetCalls counts successful writes per key.
	SetCalls map[string]int

	// Error simulation
	GetError   error
	SetError   error
	CloseError error

	// SetKeyErrors fails writes of a single key.
	SetKeyErrors map[string]error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{
		entries:      make(map[string]string),
		SetCalls:     make(map[string]int),
		SetKeyErrors: make(map[string]error),
	}
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]string)
	m.SetCalls = make(map[string]int)

	m.GetError = nil
	m.SetError = nil
	m.CloseError = nil
	m.SetKeyErrors = make(map[string]error)
}

func (m *MockDB) Get(ctx context.Context, key string) (string, bool, error) {
	if m.GetError != nil {
		return "", false, m.GetError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *MockDB) Set(ctx context.Context, key, value string) error {
	if m.SetError != nil {
		return m.SetError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.SetKeyErrors[key]; err != nil {
		return err
	}

	m.entries[key] = value
	m.SetCalls[key]++
	return nil
}

func (m *MockDB) Close() error {
	return m.CloseError
}

// Raw returns the stored value without going through error simulation.
func (m *MockDB) Raw(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	return value, ok
}

// Seed stores a value without counting it as a write.
func (m *MockDB) Seed(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
}

// Keys returns all stored keys in sorted order.
func (m *MockDB) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
