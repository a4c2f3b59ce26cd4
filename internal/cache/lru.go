package cache

import (
	"container/list"
	"sync"

	"github.com/cosfs/cosfs/pkg/types"
)

// metadataLRU is the bounded in-memory metadata tier: object key →
// ObjectMeta, evicted by access recency once capacity is exceeded. It is
// internally synchronized for concurrent get/put from handler threads.
type metadataLRU struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List

	hits      uint64
	misses    uint64
	evictions uint64
}

type metadataEntry struct {
	key  string
	meta *types.ObjectMeta
}

func newMetadataLRU(capacity int) *metadataLRU {
	return &metadataLRU{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// get returns the cached metadata for key and marks it most recently used.
func (c *metadataLRU) get(key string) (*types.ObjectMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.evictList.MoveToFront(elem)
	c.hits++
	return elem.Value.(*metadataEntry).meta, true
}

// put records metadata for key, evicting the least recently used entry if
// the cache is full.
func (c *metadataLRU) put(key string, meta *types.ObjectMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*metadataEntry).meta = meta
		c.evictList.MoveToFront(elem)
		return
	}

	c.items[key] = c.evictList.PushFront(&metadataEntry{key: key, meta: meta})

	for len(c.items) > c.capacity {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*metadataEntry)
		c.evictList.Remove(oldest)
		delete(c.items, entry.key)
		c.evictions++
	}
}

// clear drops every entry but keeps the capacity and counters.
func (c *metadataLRU) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

func (c *metadataLRU) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *metadataLRU) counters() (hits, misses, evictions uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.evictions
}
