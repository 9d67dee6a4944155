package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	store := newMockStore()
	manager := NewManagerWithStores(store)

	account := &Account{Name: "work", Token: "mfa.abcdefghijklmnop", UserAgent: "TestAgent/1.0"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("work")
	require.NoError(t, err)
	assert.Equal(t, account.Token, retrieved.Token)
	assert.Equal(t, "TestAgent/1.0", retrieved.UserAgent)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	sanitized := SanitizeAccount(account)
	assert.Equal(t, "work", sanitized.Name)
	assert.NotEqual(t, account.Token, sanitized.Token)
	assert.Equal(t, "mfa.****mnop", sanitized.Token)

	require.NoError(t, manager.Delete("work"))
	_, err = manager.Retrieve("work")
	assert.True(t, errors.Is(err, ErrCredentialsNotFound))
	assert.Equal(t, 0, store.Count())

	assert.True(t, errors.Is(manager.Delete("work"), ErrCredentialsNotFound))
}

func TestStoreValidation(t *testing.T) {
	manager := NewManagerWithStores(newMockStore())

	assert.Error(t, manager.Store(&Account{Name: "x"}))
	assert.Error(t, manager.Store(nil))

	account := &Account{Token: "tok"}
	require.NoError(t, manager.Store(account))
	assert.Equal(t, DefaultAccount, account.Name)
}

func TestStoreFallsThrough(t *testing.T) {
	broken := newMockStore()
	broken.StoreError = errors.New("locked")
	working := newMockStore()

	manager := NewManagerWithStores(broken, working)
	require.NoError(t, manager.Store(&Account{Name: "a", Token: "t"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	only := NewManagerWithStores(broken)
	assert.ErrorContains(t, only.Store(&Account{Name: "a", Token: "t"}), "locked")
}

func TestListPrefersNewest(t *testing.T) {
	older, newer := newMockStore(), newMockStore()
	require.NoError(t, older.Store(&Account{Name: "a", Token: "old", LastModified: time.Now().Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Name: "a", Token: "new", LastModified: time.Now()}))
	require.NoError(t, newer.Store(&Account{Name: "b", Token: "b", LastModified: time.Now()}))

	broken := newMockStore()
	broken.ListError = errors.New("boom")

	accounts, err := NewManagerWithStores(older, broken, newer).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Name)
	assert.Equal(t, "new", accounts[0].Token)
	assert.Equal(t, "b", accounts[1].Name)
}

func TestRetrieveDefault(t *testing.T) {
	t.Setenv(envToken, "")
	store := newMockStore()
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	_, err := manager.RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(&Account{Name: "zeta", Token: "z"}))
	account, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "zeta", account.Name)

	require.NoError(t, store.Store(&Account{Name: DefaultAccount, Token: "d"}))
	account, err = manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "d", account.Token)

	t.Setenv(envToken, "from-env")
	account, err = manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "from-env", account.Token)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStoreWithPassphrase(path, "test_passphrase_123")
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Name: "alice", Token: "secret-token-alice"}))
	require.NoError(t, store.Store(&Account{Name: "bob", Token: "secret-token-bob"}))

	retrieved, err := store.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "secret-token-alice", retrieved.Token)
	assert.True(t, store.Exists("bob"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "secret-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	wrong, err := NewEncryptedFileStoreWithPassphrase(path, "other")
	require.NoError(t, err)
	_, err = wrong.Retrieve("alice")
	assert.Error(t, err)

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Name)

	require.NoError(t, store.Delete("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrCredentialsNotFound)
	require.NoError(t, store.Delete("bob"))
	assert.NoFileExists(t, path)
}

func TestEncryptedFileStorePassphraseFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envPassphrase, "env-pass")

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Name: "a", Token: "t"}))

	again, err := NewEncryptedFileStoreWithPassphrase(filepath.Join(dir, "credentials.enc"), "env-pass")
	require.NoError(t, err)
	assert.True(t, again.Exists("a"))
	assert.NoFileExists(t, filepath.Join(dir, ".passphrase"))
}

func TestEncryptedFileStoreGeneratedPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envPassphrase, "")

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Name: "a", Token: "t"}))
	assert.FileExists(t, filepath.Join(dir, ".passphrase"))

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.True(t, reopened.Exists("a"))
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(envToken, "")
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))

	t.Setenv(envToken, "env-token")
	t.Setenv(envUserAgent, "EnvAgent")
	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env", account.Name)
	assert.Equal(t, "env-token", account.Token)
	assert.Equal(t, "EnvAgent", account.UserAgent)

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("env"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Name: "main", Token: "kr-token"}))
	require.NoError(t, store.Store(&Account{Name: "alt", Token: "kr-alt"}))
	require.NoError(t, store.Store(&Account{Name: "main", Token: "kr-token-2"}))

	account, err := store.Retrieve("main")
	require.NoError(t, err)
	assert.Equal(t, "kr-token-2", account.Token)

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alt", accounts[0].Name)

	require.NoError(t, store.Delete("alt"))
	assert.False(t, store.Exists("alt"))
	assert.ErrorIs(t, store.Delete("alt"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
