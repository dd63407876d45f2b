package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_BasicOperations(t *testing.T) {
	c, err := NewLRU[string](3)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	created, err := c.Set("a", "1")
	require.NoError(t, err)
	assert.True(t, created)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	// Update existing key
	created, err = c.Set("a", "2")
	require.NoError(t, err)
	assert.False(t, created)

	v, _ = c.Get("a")
	assert.Equal(t, "2", v)

	deleted, err := c.Delete("a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c, err := NewLRU[int](2, WithEvictionCallback[int](func(key string, _ int) {
		evicted = append(evicted, key)
	}))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)

	// Touch "a" so "b" becomes least recently used
	_, _ = c.Get("a")

	_, _ = c.Set("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Size())

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestLRU_EmptyKeyRejected(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	_, err = c.Set("", 1)
	assert.Error(t, err)

	_, err = c.Delete("")
	assert.Error(t, err)
}

func TestLRU_InvalidSize(t *testing.T) {
	_, err := NewLRU[int](0)
	assert.Error(t, err)
}

func TestLRU_Clear(t *testing.T) {
	c, err := NewLRU[int](10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = c.Set(fmt.Sprintf("k%d", i), i)
	}
	require.Equal(t, 5, c.Size())

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Size())
	assert.Empty(t, c.Keys())
}

func TestLRU_Stats(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	stats := c.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.Hits())
	assert.Equal(t, int64(1), stats.Misses())
	assert.Equal(t, int64(1), stats.Sets())
	assert.InDelta(t, 0.5, stats.HitRatio(), 0.001)
}

func TestLRU_KeysInRecencyOrder(t *testing.T) {
	c, err := NewLRU[int](3)
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	_, _ = c.Set("c", 3)
	_, _ = c.Get("a")

	assert.Equal(t, []string{"a", "c", "b"}, c.Keys())
}
