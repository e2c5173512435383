package ges

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachePolicy selects how cache entries expire.
type CachePolicy int

const (
	// CacheSliding refreshes an entry's expiry on every access (default
	// window 20 minutes).
	CacheSliding CachePolicy = iota
	// CacheFixed expires an entry window after it was inserted, regardless
	// of how often it is accessed.
	CacheFixed
)

const defaultWindow = 20 * time.Minute

// Cache is a process-wide memo of (Token, state) keyed by stream name. A
// single Cache may be shared across multiple Categories since state is
// stored as `any`; each Category only ever reads back entries it wrote.
type Cache struct {
	policy CachePolicy
	window time.Duration
	lru    *lru.Cache[string, *cacheEntry]
	group  singleflight.Group
	mu     sync.Mutex
}

type cacheEntry struct {
	mu         sync.Mutex
	token      Token
	state      any
	insertedAt time.Time
	expiresAt  time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithWindow overrides the default 20-minute expiry window.
func WithWindow(d time.Duration) CacheOption {
	return func(c *Cache) { c.window = d }
}

// WithMaxEntries bounds the number of streams cached at once (default 10000).
// Eviction beyond the bound is LRU, independent of the time-based policy.
func WithMaxEntries(n int) CacheOption {
	return func(c *Cache) {
		backing, err := lru.New[string, *cacheEntry](n)
		if err == nil {
			c.lru = backing
		}
	}
}

// NewCache builds a Cache under the given expiry policy.
func NewCache(policy CachePolicy, opts ...CacheOption) *Cache {
	backing, _ := lru.New[string, *cacheEntry](10000)
	c := &Cache{policy: policy, window: defaultWindow, lru: backing}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lookup returns the cached (token, state) for key if present and not
// expired. A sliding-window cache refreshes the entry's expiry on every hit;
// a fixed-window cache never does. Expired entries are evicted in place and
// reported as a miss.
func (c *Cache) lookup(key string) (*cacheEntry, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	expired := time.Now().After(entry.expiresAt)
	if expired {
		entry.mu.Unlock()
		c.lru.Remove(key)
		return nil, false
	}
	if c.policy == CacheSliding {
		entry.expiresAt = time.Now().Add(c.window)
	}
	entry.mu.Unlock()
	return entry, true
}

// publish inserts or replaces the cached pair for key, gated by the
// staleness predicate: a candidate token that is stale with respect to the
// incumbent never replaces it.
func (c *Cache) publish(key string, token Token, state any, isStale StalenessPredicate) {
	if isStale == nil {
		isStale = IsStale
	}
	now := time.Now()
	if existing, ok := c.lru.Get(key); ok {
		existing.mu.Lock()
		if isStale(existing.token, token) {
			existing.mu.Unlock()
			return
		}
		existing.token = token
		existing.state = state
		existing.insertedAt = now
		existing.expiresAt = now.Add(c.window)
		existing.mu.Unlock()
		return
	}
	c.lru.Add(key, &cacheEntry{
		token:      token,
		state:      state,
		insertedAt: now,
		expiresAt:  now.Add(c.window),
	})
}

// singleFlightLoad coalesces concurrent misses for the same key: only the
// first caller runs fn, others await its result.
func (c *Cache) singleFlightLoad(key string, fn func() (Token, any, error)) (Token, any, error) {
	type result struct {
		token Token
		state any
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		token, state, err := fn()
		if err != nil {
			return nil, err
		}
		return result{token: token, state: state}, nil
	})
	if err != nil {
		return Token{}, nil, err
	}
	r := v.(result)
	return r.token, r.state, nil
}
