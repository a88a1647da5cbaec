package panecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetInvalidate(t *testing.T) {
	c := NewLRU(10)

	c.Set("sess-1", "pane", "hello", 0)
	v, ok := c.Get("sess-1", "pane")
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	c.Set("sess-1", "pane", "world", 0)
	v, ok = c.Get("sess-1", "pane")
	require.True(t, ok)
	assert.Equal(t, "world", v)

	c.Invalidate("sess-1", "pane")
	_, ok = c.Get("sess-1", "pane")
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := NewLRU(10)
	c.Set("sess-1", "pane", "hello", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("sess-1", "pane")
	assert.False(t, ok)
}

func TestPerScopeEviction(t *testing.T) {
	c := NewLRU(2)
	c.Set("sess-1", "a", "1", 0)
	c.Set("sess-1", "b", "2", 0)
	c.Set("sess-1", "c", "3", 0) // evicts "a"
	_, ok := c.Get("sess-1", "a")
	assert.False(t, ok)
	_, ok = c.Get("sess-1", "b")
	assert.True(t, ok)
	_, ok = c.Get("sess-1", "c")
	assert.True(t, ok)

	// A different scope has its own budget.
	c.Set("sess-2", "a", "1", 0)
	_, ok = c.Get("sess-2", "a")
	assert.True(t, ok)
}

func TestLen(t *testing.T) {
	c := NewLRU(10)
	assert.Equal(t, 0, c.Len())
	c.Set("sess-1", "a", "1", 0)
	c.Set("sess-2", "a", "1", 0)
	assert.Equal(t, 2, c.Len())
}
