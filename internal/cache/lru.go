package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/JNZader/prreviewer/internal/model"
)

// LRUCache keeps at most maxEntries results in memory. An entry older than
// ttl counts as a miss and is dropped on access.
type LRUCache struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	mu    sync.Mutex
	index map[string]*list.Element // of *lruItem, front is most recent
	items *list.List
	stats Stats
}

type lruItem struct {
	key     string
	result  *model.ReviewResult
	storeAt time.Time
}

// NewLRUCache creates an empty cache.
func NewLRUCache(maxEntries int, ttl time.Duration) *LRUCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &LRUCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		index:      make(map[string]*list.Element),
		items:      list.New(),
	}
}

func (c *LRUCache) Get(key string) (*model.ReviewResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el := c.live(key)
	if el == nil {
		c.stats.Misses++
		return nil, false
	}
	c.items.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*lruItem).result, true
}

func (c *LRUCache) Set(key string, result *model.ReviewResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &lruItem{key: key, result: result, storeAt: c.now()}
	if el, ok := c.index[key]; ok {
		el.Value = item
		c.items.MoveToFront(el)
		return
	}

	for c.items.Len() >= c.maxEntries {
		c.remove(c.items.Back())
		c.stats.Evictions++
	}
	c.index[key] = c.items.PushFront(item)
}

// Delete drops key if present.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.remove(el)
	}
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*list.Element)
	c.items.Init()
}

func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.items.Len()
	return s
}

// live returns the element for key, removing it first if it has expired.
func (c *LRUCache) live(key string) *list.Element {
	el, ok := c.index[key]
	if !ok {
		return nil
	}
	if c.now().Sub(el.Value.(*lruItem).storeAt) > c.ttl {
		c.remove(el)
		return nil
	}
	return el
}

func (c *LRUCache) remove(el *list.Element) {
	delete(c.index, el.Value.(*lruItem).key)
	c.items.Remove(el)
}
