package cache

import (
	"sync"
	"time"

	"github.com/govtrack/backend/internal/models"
)

type entry struct {
	key string
	ts  time.Time
}

type item struct {
	identity models.Identity
	ts       time.Time
	expires  time.Time
}

// Identities keeps a fixed-size set of recently verified bearer tokens so the
// signature check is not repeated on every request.
type Identities struct {
	mu       sync.Mutex
	items    map[string]item
	order    []entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewIdentities creates a cache with the provided capacity and ttl.
func NewIdentities(capacity int, ttl time.Duration) *Identities {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Identities{
		items:    make(map[string]item, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the identity stored for key until the ttl or the identity's own
// expiry passes, whichever comes first.
func (c *Identities) Get(key string) (models.Identity, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[key]; ok && now.Before(it.expires) {
		return it.identity, true
	}
	return models.Identity{}, false
}

// Put records a verified identity for key.
func (c *Identities) Put(key string, identity models.Identity) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	expires := now.Add(c.ttl)
	if !identity.ExpiresAt.IsZero() && identity.ExpiresAt.Before(expires) {
		expires = identity.ExpiresAt
	}

	c.items[key] = item{identity: identity, ts: now, expires: expires}
	c.order = append(c.order, entry{key: key, ts: now})
	c.compact(now)
}

// Len reports how many keys are currently held.
func (c *Identities) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Identities) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if it, ok := c.items[oldest.key]; ok && it.ts.Equal(oldest.ts) {
			delete(c.items, oldest.key)
		}
	}
}
