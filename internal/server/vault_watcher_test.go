package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"applysharp/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockVaultClient is a mock implementation for testing
type MockVaultClient struct {
	mu      sync.Mutex
	secrets map[string]*config.VaultSecret
	err     error
}

func (m *MockVaultClient) GetSecretV2(path string) (*config.VaultSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if secret, exists := m.secrets[path]; exists {
		return secret, nil
	}
	return nil, nil
}

func (m *MockVaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := m.GetSecretV2(path)
	if err != nil || secret == nil {
		return "", err
	}
	return secret.StringValue(path, key)
}

func (m *MockVaultClient) set(path string, secret *config.VaultSecret) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[path] = secret
}

type reloadRecorder struct {
	passwords []string
	errs      []error
}

func (r *reloadRecorder) callback(password string, err error) {
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.passwords = append(r.passwords, password)
}

func TestVaultWatcherPoll(t *testing.T) {
	const path = "secret/data/applysharp/password"

	mockClient := &MockVaultClient{secrets: map[string]*config.VaultSecret{
		path: {Data: map[string]any{"password": "first"}, Version: 1},
	}}
	rec := &reloadRecorder{}
	vw := NewVaultWatcher(mockClient, path, time.Hour, rec.callback, nil)

	require.NoError(t, vw.Start())
	defer func() { _ = vw.Stop() }()

	t.Run("startup version is not a rotation", func(t *testing.T) {
		vw.poll()
		assert.Empty(t, rec.passwords)
	})

	t.Run("new version is applied", func(t *testing.T) {
		mockClient.set(path, &config.VaultSecret{Data: map[string]any{"password": "second"}, Version: 2})
		vw.poll()
		assert.Equal(t, []string{"second"}, rec.passwords)
		assert.Equal(t, int64(2), vw.Status()["last_version"])
		assert.Equal(t, 1, vw.Status()["rotations"])
	})

	t.Run("same version is ignored", func(t *testing.T) {
		vw.poll()
		assert.Len(t, rec.passwords, 1)
	})

	t.Run("missing password key reports an error", func(t *testing.T) {
		mockClient.set(path, &config.VaultSecret{Data: map[string]any{"other": "x"}, Version: 3})
		vw.poll()
		assert.Len(t, rec.passwords, 1)
		assert.Len(t, rec.errs, 1)
	})

	t.Run("vault errors do not call back", func(t *testing.T) {
		mockClient.mu.Lock()
		mockClient.err = fmt.Errorf("connection refused")
		mockClient.mu.Unlock()
		vw.poll()
		assert.Len(t, rec.passwords, 1)
		assert.Len(t, rec.errs, 1)
	})
}

func TestVaultWatcherCheckForUpdates(t *testing.T) {
	mockClient := &MockVaultClient{secrets: map[string]*config.VaultSecret{
		"secret/data/test": {Data: map[string]any{"password": "p"}, Version: 2},
	}}
	vw := NewVaultWatcher(mockClient, "secret/data/test", time.Minute, func(string, error) {}, nil)

	_, changed, err := vw.checkForUpdates()
	require.NoError(t, err)
	assert.True(t, changed, "first version seen should count as a change")

	_, changed, err = vw.checkForUpdates()
	require.NoError(t, err)
	assert.False(t, changed)

	missing := NewVaultWatcher(mockClient, "secret/data/missing", time.Minute, func(string, error) {}, nil)
	_, _, err = missing.checkForUpdates()
	assert.Error(t, err)
}

func TestVaultWatcherStartStop(t *testing.T) {
	mockClient := &MockVaultClient{secrets: map[string]*config.VaultSecret{}}
	vw := NewVaultWatcher(mockClient, "secret/data/test", 0, func(string, error) {}, nil)

	assert.Equal(t, time.Minute, vw.pollInterval)
	require.NoError(t, vw.Start())
	assert.Error(t, vw.Start(), "second start should fail")
	assert.Equal(t, true, vw.Status()["running"])
	require.NoError(t, vw.Stop())
	require.NoError(t, vw.Stop())
	assert.Equal(t, false, vw.Status()["running"])
}
