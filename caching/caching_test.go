package caching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGetDelete(t *testing.T) {
	c := NewCache(time.Minute)

	c.Set("user:1", 42)
	v, ok := c.Get("user:1")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	c.Delete("user:1")
	_, ok = c.Get("user:1")
	assert.False(t, ok)
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(20 * time.Millisecond)

	c.Set("k", "v")
	time.Sleep(50 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestFlush(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 2, c.Len())
	c.Flush()
	assert.Zero(t, c.Len())
}
