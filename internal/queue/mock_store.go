package queue

import (
	"sync"

	"github.com/mbellis/driftq/internal/models"
)

// MockStore provides an in-memory Store for testing, with injectable
// failures.
type MockStore struct {
	mu  sync.Mutex
	ops []*models.Operation

	// LoadErr and SaveErr, when set, are returned by the corresponding call.
	LoadErr error
	SaveErr error

	// SaveCalls counts Save invocations.
	SaveCalls int
}

// NewMockStore creates an empty mock queue store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Load returns a copy of the stored queue.
func (m *MockStore) Load() ([]*models.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.snapshot(), nil
}

// Save replaces the stored queue with a copy of ops.
func (m *MockStore) Save(ops []*models.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}

	m.ops = make([]*models.Operation, len(ops))
	for i, op := range ops {
		clone := *op
		m.ops[i] = &clone
	}
	return nil
}

// Close releases resources.
func (m *MockStore) Close() error {
	return nil
}

// Stored returns a copy of what the store currently holds, for assertions.
func (m *MockStore) Stored() []*models.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Seed replaces the stored queue directly, for test setup.
func (m *MockStore) Seed(ops []*models.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = ops
}

func (m *MockStore) snapshot() []*models.Operation {
	out := make([]*models.Operation, len(m.ops))
	for i, op := range m.ops {
		clone := *op
		out[i] = &clone
	}
	return out
}
