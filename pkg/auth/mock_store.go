package auth

import (
	"context"
	"sync"
)

// MockStore is an in-memory CookieStore with error injection for tests.
type MockStore struct {
	mu      sync.Mutex
	cookies []Cookie
	saves   int

	LoadError  error
	SaveError  error
	ClearError error
}

// NewMockStore creates a store pre-populated with cookies.
func NewMockStore(cookies ...Cookie) *MockStore {
	return &MockStore{cookies: Normalize(cookies)}
}

func (m *MockStore) Load(ctx context.Context) ([]Cookie, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Cookie, len(m.cookies))
	copy(out, m.cookies)
	return out, nil
}

func (m *MockStore) Save(ctx context.Context, cookies []Cookie) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = Normalize(cookies)
	m.saves++
	return nil
}

func (m *MockStore) Clear(ctx context.Context) error {
	if m.ClearError != nil {
		return m.ClearError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = nil
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MockStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
