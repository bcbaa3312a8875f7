package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("stream:str_1", "payload")

	v, ok := c.Get("stream:str_1")
	assert.True(t, ok)
	assert.Equal(t, "payload", v)

	_, ok = c.Get("stream:str_2")
	assert.False(t, ok)
}

func TestCacheEntryExpires(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	defer c.Stop()

	c.Set("k", 1)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheDeleteAndLen(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 2, c.Len())

	c.Delete("a")
	assert.Equal(t, 1, c.Len())

	c.Delete("missing")
	assert.Equal(t, 1, c.Len())
}
