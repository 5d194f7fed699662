package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetPut(t *testing.T) {
	c, err := New[string, int]("test", 4)
	require.NoError(t, err)

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	c.Put("a", 1)
	got, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.True(t, c.Contains("a"))
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New[int, int]("test", 2)
	require.NoError(t, err)

	c.Put(1, 1)
	c.Put(2, 2)

	// touch 1 so 2 becomes the eviction candidate
	_, err = c.Get(1)
	require.NoError(t, err)

	evicted := c.Put(3, 3)
	assert.True(t, evicted)

	_, err = c.Get(2)
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(1)
	assert.NoError(t, err)
}

func TestCacheRemove(t *testing.T) {
	c, err := New[string, string]("test", 2)
	require.NoError(t, err)

	c.Put("k", "v")
	c.Remove("k")
	assert.False(t, c.Contains("k"))
	assert.Equal(t, 0, c.Len())
}

func TestCacheInvalidCapacity(t *testing.T) {
	_, err := New[string, int]("test", 0)
	assert.Error(t, err)
}
