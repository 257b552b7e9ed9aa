package roborock

import (
	"context"
	"sync"
)

// CacheKey identifies one cached device attribute.
type CacheKey string

// Cached attributes. These change rarely, so they are read once and
// kept instead of being fetched on every refresh.
const (
	CacheKeyChildLock CacheKey = "child_lock_status"
	CacheKeyDNDTimer  CacheKey = "dnd_timer"
	CacheKeyVolume    CacheKey = "sound_volume"
	CacheKeyFlowLED   CacheKey = "flow_led_status"
)

type cacheEntry struct {
	value   any
	refresh func(ctx context.Context) (any, error)
}

// AttributeCache holds the last-read value of each slow-changing device
// attribute. After a transport outage the values may be stale, so
// Replay re-reads a chosen key set before the device is marked
// available again.
//
// All methods are thread-safe.
type AttributeCache struct {
	mu      sync.Mutex
	entries map[CacheKey]*cacheEntry
}

// NewAttributeCache creates an empty cache.
func NewAttributeCache() *AttributeCache {
	return &AttributeCache{entries: make(map[CacheKey]*cacheEntry)}
}

// Register adds an attribute with its refresh function. Registering an
// existing key replaces its refresh function and clears its value.
func (c *AttributeCache) Register(key CacheKey, refresh func(ctx context.Context) (any, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{refresh: refresh}
}

// Get returns the cached value. The bool is false when the key is
// unregistered or has never been read.
func (c *AttributeCache) Get(key CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.value == nil {
		return nil, false
	}
	return e.value, true
}

// Set stores a value directly, for attributes updated by commands
// without a round trip.
func (c *AttributeCache) Set(key CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.value = value
	}
}

// Keys returns the registered keys.
func (c *AttributeCache) Keys() []CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]CacheKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Replay re-reads the given keys concurrently, in no particular order.
// Unregistered keys are skipped. The first error encountered is
// returned; remaining reads still run to completion.
func (c *AttributeCache) Replay(ctx context.Context, keys []CacheKey) error {
	c.mu.Lock()
	refreshes := make(map[CacheKey]func(ctx context.Context) (any, error), len(keys))
	for _, k := range keys {
		if e, ok := c.entries[k]; ok && e.refresh != nil {
			refreshes[k] = e.refresh
		}
	}
	c.mu.Unlock()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for key, refresh := range refreshes {
		wg.Add(1)
		go func(key CacheKey, refresh func(ctx context.Context) (any, error)) {
			defer wg.Done()
			value, err := refresh(ctx)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			c.mu.Lock()
			if e, ok := c.entries[key]; ok {
				e.value = value
			}
			c.mu.Unlock()
		}(key, refresh)
	}
	wg.Wait()
	return firstErr
}
