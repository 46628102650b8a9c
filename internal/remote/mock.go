package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Call records one remote invocation, in order.
type Call struct {
	Op         string // "create", "update", "delete"
	Collection string
	DocumentID string
	Fields     map[string]any
}

// MockStore is a scriptable in-memory remote store for tests. FailNext
// queues errors consumed one per call; FailAll forces every call to fail.
type MockStore struct {
	mu sync.Mutex

	Calls    []Call
	FailAll  error
	failNext []error

	documents map[string]map[string]any // "collection/id" -> fields
}

// NewMockStore creates an empty mock remote store.
func NewMockStore() *MockStore {
	return &MockStore{
		documents: make(map[string]map[string]any),
	}
}

// FailNext queues errs to be returned by the next calls, in order.
func (m *MockStore) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = append(m.failNext, errs...)
}

// Create records the call and stores the document.
func (m *MockStore) Create(_ context.Context, collection, documentID string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if documentID == "" {
		documentID = uuid.NewString()
	}
	m.Calls = append(m.Calls, Call{Op: "create", Collection: collection, DocumentID: documentID, Fields: fields})

	if err := m.nextError(); err != nil {
		return "", err
	}

	m.documents[collection+"/"+documentID] = fields
	return documentID, nil
}

// Update records the call and merges fields into the document.
func (m *MockStore) Update(_ context.Context, collection, documentID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, Call{Op: "update", Collection: collection, DocumentID: documentID, Fields: fields})

	if err := m.nextError(); err != nil {
		return err
	}

	key := collection + "/" + documentID
	existing, ok := m.documents[key]
	if !ok {
		return fmt.Errorf("document %s not found", key)
	}
	for name, value := range fields {
		existing[name] = value
	}
	return nil
}

// Delete records the call and removes the document.
func (m *MockStore) Delete(_ context.Context, collection, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, Call{Op: "delete", Collection: collection, DocumentID: documentID})

	if err := m.nextError(); err != nil {
		return err
	}

	delete(m.documents, collection+"/"+documentID)
	return nil
}

// Close releases resources.
func (m *MockStore) Close() error {
	return nil
}

// Document returns a stored document's fields, for assertions.
func (m *MockStore) Document(collection, documentID string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.documents[collection+"/"+documentID]
	return fields, ok
}

// CallOps returns the recorded operations in order, for assertions.
func (m *MockStore) CallOps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.Calls))
	for i, call := range m.Calls {
		ops[i] = call.Op
	}
	return ops
}

func (m *MockStore) nextError() error {
	if m.FailAll != nil {
		return m.FailAll
	}
	if len(m.failNext) > 0 {
		err := m.failNext[0]
		m.failNext = m.failNext[1:]
		return err
	}
	return nil
}
