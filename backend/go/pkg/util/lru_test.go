package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []any
	c, err := NewWithConfig[string, int](CacheConfig{Capacity: 2, OnEvict: func(k any) { evicted = append(evicted, k) }})
	require.NoError(t, err)

	c.Put("a", 1, 1)
	c.Put("b", 2, 1)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Put("c", 3, 1)

	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []any{"b"}, evicted)
	assert.Equal(t, 2, c.Len())
}

func TestLRUWeight(t *testing.T) {
	c, err := NewWithConfig[string, string](CacheConfig{MaxWeight: 10})
	require.NoError(t, err)

	c.Put("small", "x", 3)
	c.Put("medium", "y", 4)
	c.Put("large", "z", 8)

	assert.Equal(t, 8, c.Weight())
	assert.Equal(t, 1, c.Len())
}

func TestLRUTTL(t *testing.T) {
	now := time.Unix(100, 0)
	c, err := NewWithConfig[string, int](CacheConfig{Capacity: 4, TTL: time.Minute, Now: func() time.Time { return now }})
	require.NoError(t, err)

	c.Put("k", 1, 1)
	now = now.Add(30 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUGetOrPut(t *testing.T) {
	c, err := NewWithConfig[string, *int](CacheConfig{Capacity: 4})
	require.NoError(t, err)

	calls := 0
	create := func() *int { calls++; v := calls; return &v }
	first := c.GetOrPut("k", create)
	second := c.GetOrPut("k", create)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestLRURemoveAndPurge(t *testing.T) {
	c, err := NewWithConfig[int, int](CacheConfig{Capacity: 4})
	require.NoError(t, err)

	c.Put(1, 1, 1)
	c.Put(2, 2, 1)
	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Weight())
}

func TestLRURequiresALimit(t *testing.T) {
	_, err := NewWithConfig[string, int](CacheConfig{TTL: time.Second})
	assert.Error(t, err)
}
