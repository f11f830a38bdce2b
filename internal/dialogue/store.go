package dialogue

import (
	"context"
	"sync"
)

// Store keeps per-user dialogue state.
type Store interface {
	// Get returns the user's state, or Initial when none is held.
	Get(ctx context.Context, userID string) (State, error)
	Put(ctx context.Context, userID string, s State) error
	Delete(ctx context.Context, userID string) error
}

// MemoryStore holds state in process memory. Entries never expire and are
// lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[userID]
	if !ok {
		return Initial(), nil
	}
	return s, nil
}

// Put implements Store. The last write wins.
func (m *MemoryStore) Put(_ context.Context, userID string, s State) error {
	m.mu.Lock()
	m.states[userID] = s
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.states, userID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of users with held state.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
