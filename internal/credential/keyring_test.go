package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/priobox/internal/model"
)

func TestVaultLifecycle(t *testing.T) {
	v := NewMemoryVault()

	_, err := v.Get("acc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, v.Set("acc-1", "hunter2"))
	pw, err := v.Get("acc-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	require.NoError(t, v.Set("acc-1", "correct horse"))
	pw, err = v.Get("acc-1")
	require.NoError(t, err)
	assert.Equal(t, "correct horse", pw, "set replaces the current password")

	require.NoError(t, v.Clear("acc-1"))
	_, err = v.Get("acc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVaultClearAbsentIsNoop(t *testing.T) {
	v := NewMemoryVault()
	assert.NoError(t, v.Clear("never-set"))
}

func TestVaultKeysAreScopedPerAccount(t *testing.T) {
	v := NewMemoryVault()
	require.NoError(t, v.Set("a", "one"))
	require.NoError(t, v.Set("b", "two"))

	require.NoError(t, v.Clear("a"))

	pw, err := v.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "two", pw)
}

func TestOpenMemoryBackend(t *testing.T) {
	v, err := Open(model.VaultConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, v.Set("x", "y"))
}
