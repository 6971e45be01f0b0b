package cachemem

import (
	"context"
	"sync"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/usecase"
)

// Cache holds circuit descriptors by id. Entries without a TTL live until
// invalidated.
type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     domain.CircuitDescriptor
	expiresAt time.Time
	hasExpiry bool
}

func New() *Cache {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(ctx context.Context, circuitID string) (*domain.CircuitDescriptor, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[circuitID]
	if !ok {
		return nil, false, nil
	}
	if entry.hasExpiry && c.now().After(entry.expiresAt) {
		delete(c.entries, circuitID)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

func (c *Cache) Put(ctx context.Context, d domain.CircuitDescriptor, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: d}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[d.CircuitID] = entry
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, circuitID string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, circuitID)
	return nil
}

var _ usecase.DescriptorCache = (*Cache)(nil)
