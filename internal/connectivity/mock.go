package connectivity

import (
	"sync"
	"sync/atomic"
)

// MockMonitor is a hand-driven Monitor for tests.
type MockMonitor struct {
	online    atomic.Bool
	edges     chan struct{}
	closeOnce sync.Once
}

// NewMockMonitor creates a mock monitor at the given initial level.
func NewMockMonitor(online bool) *MockMonitor {
	m := &MockMonitor{
		edges: make(chan struct{}, 8),
	}
	m.online.Store(online)
	return m
}

// Online reports the current level.
func (m *MockMonitor) Online() bool {
	return m.online.Load()
}

// Edges returns the edge event channel.
func (m *MockMonitor) Edges() <-chan struct{} {
	return m.edges
}

// Close closes the edge channel.
func (m *MockMonitor) Close() error {
	m.closeOnce.Do(func() { close(m.edges) })
	return nil
}

// SetOnline sets the level, emitting an edge on the false→true transition.
func (m *MockMonitor) SetOnline(online bool) {
	was := m.online.Swap(online)
	if online && !was {
		m.edges <- struct{}{}
	}
}
