package auth

import (
	"os"
	"time"
)

const (
	envToken     = "CHANARCHIVE_TOKEN"
	envUserAgent = "CHANARCHIVE_USER_AGENT"
)

// EnvironmentStore reads a single read-only account from CHANARCHIVE_TOKEN
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account under any name
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := os.Getenv(envToken)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "env"
	}
	return &Account{
		Name:         name,
		Token:        token,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(envToken) != ""
}
