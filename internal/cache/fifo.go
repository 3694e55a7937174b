// Package cache holds the bounded in-memory slug-to-URL map used to shortcut
// storage reads on the redirect path.
package cache

import (
	"container/list"
	"sync"
)

const DefaultCapacity = 1000

// Cache evicts in insertion order, not access order: a hit does not refresh
// an entry's position, so the oldest-inserted slug always goes first. Entries
// carry no TTL; the service only re-checks expiry on the storage path.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type entry struct {
	slug string
	url  string
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *Cache) Get(slug string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if elem, found := c.entries[slug]; found {
		return elem.Value.(*entry).url, true
	}
	return "", false
}

// Put inserts or updates a mapping. Updating an existing slug keeps its
// position in the eviction order. At capacity the oldest-inserted entry is
// removed first.
func (c *Cache) Put(slug, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.entries[slug]; found {
		elem.Value.(*entry).url = url
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).slug)
		}
	}

	c.entries[slug] = c.order.PushBack(&entry{slug: slug, url: url})
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
