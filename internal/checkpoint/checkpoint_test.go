package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLookupMissReturnsFalse(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Lookup("a", "b", 2, 1, 1, 1, "hash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreThenLookupRoundTrips(t *testing.T) {
	c := openTestCache(t)
	entry := Entry{Result: 1.5, Error: 0.01, Converged: true}
	require.NoError(t, c.Store("a", "b", 2, 1, 1, 1, "hash-1", entry))

	got, ok, err := c.Lookup("a", "b", 2, 1, 1, 1, "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestLookupMissesOnHashMismatch(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Store("a", "b", 2, 1, 1, 1, "hash-1", Entry{Result: 1}))

	_, ok, err := c.Lookup("a", "b", 2, 1, 1, 1, "hash-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreOverwritesExistingEntry(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Store("a", "b", 2, 1, 1, 1, "hash-1", Entry{Result: 1}))
	require.NoError(t, c.Store("a", "b", 2, 1, 1, 1, "hash-2", Entry{Result: 2, Converged: true}))

	got, ok, err := c.Lookup("a", "b", 2, 1, 1, 1, "hash-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Result)
	assert.True(t, got.Converged)
}

func TestHashParametersIsOrderIndependent(t *testing.T) {
	a := HashParameters(map[string]float64{"gs": 1.2, "lambda": 0.5})
	b := HashParameters(map[string]float64{"lambda": 0.5, "gs": 1.2})
	assert.Equal(t, a, b)
}

func TestHashParametersDiffersOnValueChange(t *testing.T) {
	a := HashParameters(map[string]float64{"gs": 1.2})
	b := HashParameters(map[string]float64{"gs": 1.3})
	assert.NotEqual(t, a, b)
}
