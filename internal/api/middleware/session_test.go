package middleware

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(maxSize int) (*SessionCache, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewSessionCache()
	c.maxSize = maxSize
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSessionCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(10)

	_, ok := c.Get("tok")
	assert.False(t, ok)

	c.Put("tok", "alice@example.com")
	email, ok := c.Get("tok")
	assert.True(t, ok)
	assert.Equal(t, "alice@example.com", email)
}

func TestSessionCacheExpires(t *testing.T) {
	c, now := newTestCache(10)
	c.Put("tok", "alice@example.com")

	*now = now.Add(2 * time.Minute)
	_, ok := c.Get("tok")
	assert.False(t, ok, "stale entries must force re-verification")
}

func TestSessionCacheDrop(t *testing.T) {
	c, _ := newTestCache(10)
	c.Put("tok", "alice@example.com")
	c.Drop("tok")
	_, ok := c.Get("tok")
	assert.False(t, ok)
}

func TestSessionCacheBounded(t *testing.T) {
	c, now := newTestCache(3)
	c.Put("a", "a@example.com")
	c.Put("b", "b@example.com")
	c.Put("c", "c@example.com")

	// Full of fresh entries: the new one is not cached.
	c.Put("d", "d@example.com")
	_, ok := c.Get("d")
	assert.False(t, ok)

	// Once the old entries age out they are swept and there is room again.
	*now = now.Add(2 * time.Minute)
	c.Put("d", "d@example.com")
	email, ok := c.Get("d")
	assert.True(t, ok)
	assert.Equal(t, "d@example.com", email)
	assert.Less(t, len(c.entries), 3)
}

func TestSessionCacheIndependentTokens(t *testing.T) {
	c, _ := newTestCache(10)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("tok-%d", i), fmt.Sprintf("user%d@example.com", i))
	}
	email, ok := c.Get("tok-3")
	assert.True(t, ok)
	assert.Equal(t, "user3@example.com", email)
}
