package watch

import (
	"context"
	"sync"
)

// MemoryStore is a Store with no persistence. It backs tests and any
// deployment that can tolerate losing baselines across restarts.
type MemoryStore struct {
	mu sync.Mutex
	st *state
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newState()}
}

func (m *MemoryStore) Register(_ context.Context, userID int64, address, name string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.register(userID, address, name)
}

func (m *MemoryStore) Rename(_ context.Context, userID int64, address, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.rename(userID, address, newName)
}

func (m *MemoryStore) Unregister(_ context.Context, userID int64, address string) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.unregister(userID, address)
}

func (m *MemoryStore) ListFor(_ context.Context, userID int64) ([]*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listFor(userID), nil
}

func (m *MemoryStore) ListAll(_ context.Context) ([]*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listAll(), nil
}

func (m *MemoryStore) RecordBaseline(_ context.Context, userID int64, address, marker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.st.recordBaseline(userID, address, marker)
	return err
}

func (m *MemoryStore) TryAdvance(_ context.Context, userID int64, address, newMarker string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, advanced, _, err := m.st.tryAdvance(userID, address, newMarker)
	return prev, advanced, err
}
