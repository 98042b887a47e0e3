package memory

import (
	"context"
	"time"

	"github.com/alphadose/haxmap"

	"deepsearch/internal/domain"
)

// MemoryCache is an in-process domain.ResponseCache used when persistent
// storage is disabled. Entries live until the process exits or are
// replaced. Reads never mutate: an expired entry is a miss but stays put,
// so a read racing a PutAnswer cannot drop the fresh entry.
type MemoryCache struct {
	entries *haxmap.Map[string, domain.CacheEntry]
}

var _ domain.ResponseCache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: haxmap.New[string, domain.CacheEntry]()}
}

func (c *MemoryCache) GetAnswer(_ context.Context, key string, now time.Time) (*domain.AggregatedAnswer, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	if !entry.ExpiresAt.After(now) {
		return nil, nil
	}
	ans := entry.Answer
	return &ans, nil
}

func (c *MemoryCache) PutAnswer(_ context.Context, entry domain.CacheEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	c.entries.Set(entry.Query, entry)
	return nil
}

func (c *MemoryCache) Len() int {
	return int(c.entries.Len())
}
