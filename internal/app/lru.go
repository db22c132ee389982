package app

import (
	"container/list"
	"sync"

	"promptathon/internal/domain"
)

// levelConfigCache is a fixed-capacity LRU for per-level score config. Entries
// never expire; they leave only by eviction or an explicit clear.
type levelConfigCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
}

type levelConfigEntry struct {
	level  string
	config domain.LevelConfig
}

func newLevelConfigCache(capacity int) *levelConfigCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &levelConfigCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *levelConfigCache) get(level string) (domain.LevelConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[level]
	if !ok {
		return domain.LevelConfig{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*levelConfigEntry).config, true
}

func (c *levelConfigCache) put(level string, config domain.LevelConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[level]; ok {
		elem.Value.(*levelConfigEntry).config = config
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*levelConfigEntry).level)
		}
	}
	c.entries[level] = c.order.PushFront(&levelConfigEntry{level: level, config: config})
}

func (c *levelConfigCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

func (c *levelConfigCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *levelConfigCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*levelConfigEntry).level)
	}
	return keys
}
