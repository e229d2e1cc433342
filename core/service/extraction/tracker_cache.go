package extraction

import (
	"context"
	"sync"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

const DefaultCacheEntries = 1000

// =============================================================================
// MemoryCache - bounded FIFO keyed by content hash
// =============================================================================

// fifoNode is a node in the insertion-order list. head.next is the oldest entry.
type fifoNode struct {
	key    string
	result domain.ExtractionResult
	prev   *fifoNode
	next   *fifoNode
}

// MemoryCache holds validated extraction results in process memory.
// Inserting past maxEntries evicts the oldest insertion; reads do not reorder.
type MemoryCache struct {
	mu         sync.Mutex
	nodes      map[string]*fifoNode
	head       *fifoNode
	tail       *fifoNode
	maxEntries int

	hits   int64
	misses int64
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	head := &fifoNode{}
	tail := &fifoNode{}
	head.next = tail
	tail.prev = head
	return &MemoryCache{
		nodes:      make(map[string]*fifoNode),
		head:       head,
		tail:       tail,
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the cached result.
func (c *MemoryCache) Get(_ context.Context, hash string) (*domain.ExtractionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.nodes[hash]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	result := node.result
	return &result, true
}

// Put stores result under hash. Re-putting a key counts as a fresh insertion.
func (c *MemoryCache) Put(_ context.Context, hash string, result *domain.ExtractionResult) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.nodes[hash]; ok {
		c.unlink(node)
		delete(c.nodes, hash)
	}
	for len(c.nodes) >= c.maxEntries {
		oldest := c.head.next
		c.unlink(oldest)
		delete(c.nodes, oldest.key)
	}

	node := &fifoNode{key: hash, result: *result}
	c.pushBack(node)
	c.nodes[hash] = node
}

// Clear drops all entries. Hit and miss counters are kept.
func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodes = make(map[string]*fifoNode)
	c.head.next = c.tail
	c.tail.prev = c.head
}

func (c *MemoryCache) Stats() out.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return out.CacheStats{
		Size:       len(c.nodes),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
	}
}

func (c *MemoryCache) pushBack(node *fifoNode) {
	node.prev = c.tail.prev
	node.next = c.tail
	c.tail.prev.next = node
	c.tail.prev = node
}

func (c *MemoryCache) unlink(node *fifoNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
	node.prev = nil
	node.next = nil
}

// =============================================================================
// TieredCache - memory in front of a shared store
// =============================================================================

// TieredCache reads the local tier first and promotes shared-tier hits into it.
type TieredCache struct {
	local  out.ExtractionCache
	shared out.ExtractionCache

	mu     sync.Mutex
	hits   int64
	misses int64
}

func NewTieredCache(local, shared out.ExtractionCache) *TieredCache {
	return &TieredCache{local: local, shared: shared}
}

func (c *TieredCache) Get(ctx context.Context, hash string) (*domain.ExtractionResult, bool) {
	if result, ok := c.local.Get(ctx, hash); ok {
		c.record(true)
		return result, true
	}
	if c.shared != nil {
		if result, ok := c.shared.Get(ctx, hash); ok {
			c.local.Put(ctx, hash, result)
			c.record(true)
			return result, true
		}
	}
	c.record(false)
	return nil, false
}

func (c *TieredCache) Put(ctx context.Context, hash string, result *domain.ExtractionResult) {
	c.local.Put(ctx, hash, result)
	if c.shared != nil {
		c.shared.Put(ctx, hash, result)
	}
}

func (c *TieredCache) Clear(ctx context.Context) {
	c.local.Clear(ctx)
	if c.shared != nil {
		c.shared.Clear(ctx)
	}
}

// Stats reports the local tier's size with hit and miss counts across both tiers.
func (c *TieredCache) Stats() out.CacheStats {
	stats := c.local.Stats()
	c.mu.Lock()
	stats.Hits = c.hits
	stats.Misses = c.misses
	c.mu.Unlock()
	return stats
}

func (c *TieredCache) record(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}
