package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	c, err := New[string, int](10, time.Minute, 0.8)
	require.NoError(t, err)

	c.Put("a", 1)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestExpiredEntryIsAbsent(t *testing.T) {
	c, err := New[string, int](10, 10*time.Millisecond, 0.8)
	require.NoError(t, err)

	c.Put("a", 1)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok, "expired entry must be logically absent")
	assert.Equal(t, 0, c.Len(), "expired entry dropped on read")
}

func TestPutRefreshesTimestamp(t *testing.T) {
	c, err := New[string, int](10, 50*time.Millisecond, 0.8)
	require.NoError(t, err)

	c.Put("a", 1)
	time.Sleep(30 * time.Millisecond)
	c.Put("a", 2)
	time.Sleep(30 * time.Millisecond)

	got, ok := c.Get("a")
	assert.True(t, ok, "refresh should reset the TTL window")
	assert.Equal(t, 2, got)
}

func TestEvictionKeepRatio(t *testing.T) {
	const capacity = 10
	const keepRatio = 0.5
	c, err := New[int, int](capacity, time.Minute, keepRatio)
	require.NoError(t, err)

	for i := 0; i < capacity; i++ {
		c.Put(i, i)
	}
	require.Equal(t, capacity, c.Len())

	// The insert that hits the cap must leave the cache at or below
	// keepRatio*capacity plus the new entry.
	c.Put(capacity, capacity)
	assert.LessOrEqual(t, c.Len(), int(float64(capacity)*keepRatio)+1)

	// Newest entries survive.
	_, ok := c.Get(capacity)
	assert.True(t, ok)
	_, ok = c.Get(0)
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestSweepRemovesExpiredFirst(t *testing.T) {
	c, err := New[string, int](4, 30*time.Millisecond, 1.0)
	require.NoError(t, err)

	c.Put("old1", 1)
	c.Put("old2", 2)
	time.Sleep(40 * time.Millisecond)
	c.Put("new1", 3)
	c.Put("new2", 4)

	c.Sweep()

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("new1")
	assert.True(t, ok)
	_, ok = c.Get("new2")
	assert.True(t, ok)
}

func TestHitRatio(t *testing.T) {
	c, err := New[string, int](10, time.Minute, 0.8)
	require.NoError(t, err)

	assert.Equal(t, 0.0, c.HitRatio())

	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	assert.InDelta(t, 2.0/3.0, c.HitRatio(), 1e-9)
}

func TestPurge(t *testing.T) {
	c, err := New[string, int](10, time.Minute, 0.8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestInvalidCapacity(t *testing.T) {
	_, err := New[string, int](0, time.Minute, 0.8)
	assert.Error(t, err)
}
