package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCache_BasicOperations(t *testing.T) {
	c := New[string, int](Config{MaxItems: 100, DefaultTTL: time.Minute})
	defer c.Close()

	t.Run("SetAndGet", func(t *testing.T) {
		c.Set("a", 1)
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		v, ok := c.Get("missing")
		assert.False(t, ok)
		assert.Zero(t, v)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		c.Set("b", 1)
		c.Set("b", 2)
		v, ok := c.Get("b")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set("c", 3)
		assert.True(t, c.Delete("c"))
		assert.False(t, c.Delete("c"))
		_, ok := c.Get("c")
		assert.False(t, ok)
	})
}

func TestCache_Expiration(t *testing.T) {
	clock := newClock()
	c := New[string, string](Config{DefaultTTL: time.Minute, Now: clock.Now})
	defer c.Close()

	c.Set("k", "v")
	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(), "expired entry is removed on read")
}

func TestCache_SetWithTTL(t *testing.T) {
	clock := newClock()
	c := New[string, string](Config{DefaultTTL: time.Hour, Now: clock.Now})
	defer c.Close()

	c.SetWithTTL("short", "v", 10*time.Second)
	clock.Advance(11 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestCache_Eviction(t *testing.T) {
	c := New[string, int](Config{MaxItems: 3, DefaultTTL: time.Minute})
	defer c.Close()

	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Set("key3", 3)
	assert.Equal(t, 3, c.Size())

	// key1 becomes most recently used, key2 is now the eviction candidate.
	c.Get("key1")
	c.Set("key4", 4)
	assert.Equal(t, 3, c.Size())

	_, ok := c.Get("key2")
	assert.False(t, ok)
	_, ok = c.Get("key1")
	assert.True(t, ok)
}

func TestCache_DeleteFunc(t *testing.T) {
	type key struct {
		group int
		n     int
	}
	c := New[key, string](Config{DefaultTTL: time.Minute})
	defer c.Close()

	c.Set(key{1, 1}, "a")
	c.Set(key{1, 2}, "b")
	c.Set(key{2, 1}, "c")

	removed := c.DeleteFunc(func(k key) bool { return k.group == 1 })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Size())
	_, ok := c.Get(key{2, 1})
	assert.True(t, ok)
}

func TestCache_CleanupExpired(t *testing.T) {
	clock := newClock()
	c := New[int, int](Config{DefaultTTL: time.Minute, Now: clock.Now})
	defer c.Close()

	c.Set(1, 1)
	c.SetWithTTL(2, 2, time.Hour)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 1, c.Size())
}

func TestCache_BackgroundCleanup(t *testing.T) {
	c := New[int, int](Config{DefaultTTL: 10 * time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	c.Set(1, 1)

	require.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](Config{MaxItems: 1000, DefaultTTL: time.Minute})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(n%26, n)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(n % 26)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 26)
}
