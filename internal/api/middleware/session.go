package middleware

import (
	"sync"
	"time"
)

// SessionCache remembers recently verified tokens so the RSA signature check
// does not run on every request of an active session. Entries are short
// lived: the TTL must stay a small fraction of the token lifetime so an
// expired or rotated-away token is re-verified (and rejected) promptly.
type SessionCache struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]sessionEntry
}

type sessionEntry struct {
	email    string
	verified time.Time
}

const (
	defaultSessionCacheTTL  = time.Minute
	defaultSessionCacheSize = 10000
)

func NewSessionCache() *SessionCache {
	return &SessionCache{
		ttl:     defaultSessionCacheTTL,
		maxSize: defaultSessionCacheSize,
		now:     time.Now,
		entries: make(map[string]sessionEntry),
	}
}

// Get returns the subject a token was last verified as, if still fresh.
func (c *SessionCache) Get(token string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[token]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.verified) > c.ttl {
		return "", false
	}
	return entry.email, true
}

// Put records a freshly verified token. When the cache is full, expired
// entries are swept first; if it is still full the new entry is simply not
// cached, which only costs a re-verification.
func (c *SessionCache) Put(token, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		cutoff := c.now().Add(-c.ttl)
		for t, entry := range c.entries {
			if entry.verified.Before(cutoff) {
				delete(c.entries, t)
			}
		}
		if len(c.entries) >= c.maxSize {
			return
		}
	}
	c.entries[token] = sessionEntry{email: email, verified: c.now()}
}

// Drop forgets a token, used on logout.
func (c *SessionCache) Drop(token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}
