package tokenstore

import "sync"

// MemoryStore keeps tokens for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) AccessToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access, nil
}

func (m *MemoryStore) SetAccessToken(token string) error {
	m.mu.Lock()
	m.access = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) RemoveAccessToken() error {
	return m.SetAccessToken("")
}

func (m *MemoryStore) RefreshToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh, nil
}

func (m *MemoryStore) SetRefreshToken(token string) error {
	m.mu.Lock()
	m.refresh = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) RemoveRefreshToken() error {
	return m.SetRefreshToken("")
}

func (m *MemoryStore) SetTokens(access, refresh string) error {
	m.mu.Lock()
	m.access, m.refresh = access, refresh
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) RemoveAll() error {
	return m.SetTokens("", "")
}
