package auth

import (
	"sync"
)

// mockStore is an in-memory CredentialStore with error injection
type mockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account

	StoreError error
	ListError  error
}

func newMockStore() *mockStore {
	return &mockStore{accounts: make(map[string]*Account)}
}

func (m *mockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *account
	m.accounts[account.Name] = &cp
	return nil
}

func (m *mockStore) Retrieve(name string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	cp := *account
	return &cp, nil
}

func (m *mockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Account
	for _, account := range m.accounts {
		cp := *account
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, name)
	return nil
}

func (m *mockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[name]
	return ok
}

func (m *mockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
