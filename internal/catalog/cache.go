package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const productSnapshotKey = "catalog:products"

// DefaultCacheTTL bounds snapshot staleness when no TTL is configured.
const DefaultCacheTTL = 30 * time.Second

// Cache keeps a JSON product snapshot in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a snapshot cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// GetProducts returns the cached snapshot, if present and decodable.
func (c *Cache) GetProducts(ctx context.Context) ([]Product, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, productSnapshotKey).Bytes()
	if err != nil {
		return nil, false
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, false
	}
	return products, true
}

// SetProducts stores the snapshot. Failures are ignored: the cache is an
// availability aid, not a source of truth.
func (c *Cache) SetProducts(ctx context.Context, products []Product) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, productSnapshotKey, raw, c.ttl).Err()
}

// Invalidate drops the snapshot after catalog mutations.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, productSnapshotKey).Err()
}
