// Package dedupe remembers recently seen message ids so a message the
// bridge delivers twice is answered once.
package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key  string
	seen time.Time
}

// Cache is a bounded set of keys that expire after a TTL. Keys are kept in
// the order they were last marked, so expiry and eviction both work from
// the front of the list.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache holding at most maxSize keys for ttl each. A
// non-positive maxSize means unbounded.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen reports whether key was marked within the TTL. A key that was not
// seen is marked before Seen returns, so of two concurrent callers with the
// same key exactly one gets false.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expire(now)

	if el, ok := c.index[key]; ok {
		// Still inside the TTL, otherwise expire would have dropped it.
		el.Value.(*entry).seen = now
		c.order.MoveToBack(el)
		return true
	}

	if c.maxSize > 0 && c.order.Len() >= c.maxSize {
		c.remove(c.order.Front())
	}
	c.index[key] = c.order.PushBack(&entry{key: key, seen: now})
	return false
}

// Len returns the number of live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire(c.now())
	return c.order.Len()
}

// expire drops keys older than the TTL. Must be called with mu held.
func (c *Cache) expire(now time.Time) {
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		if now.Sub(el.Value.(*entry).seen) < c.ttl {
			return
		}
		c.remove(el)
	}
}

func (c *Cache) remove(el *list.Element) {
	if el == nil {
		return
	}
	delete(c.index, el.Value.(*entry).key)
	c.order.Remove(el)
}
