package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "catalog:product:"

// Cache is a Redis read-through cache of Product values. A nil *Cache, nil
// client or non-positive TTL turns every call into a miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns a product cache storing entries for ttl.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func cacheKey(id uuid.UUID) string { return cachePrefix + id.String() }

// Get returns the cached product and whether it was present.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (Product, bool, error) {
	if !c.enabled() {
		return Product{}, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, false, fmt.Errorf("decode cached product: %w", err)
	}
	return p, true, nil
}

// GetMany looks ids up with a single MGET. Entries that are absent or fail to
// decode are reported as missing.
func (c *Cache) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, []uuid.UUID, error) {
	if !c.enabled() || len(ids) == 0 {
		return map[uuid.UUID]Product{}, ids, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return map[uuid.UUID]Product{}, ids, err
	}
	found := make(map[uuid.UUID]Product, len(ids))
	var missing []uuid.UUID
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var p Product
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		found[ids[i]] = p
	}
	return found, missing, nil
}

// Put stores products in one pipeline.
func (c *Cache) Put(ctx context.Context, products ...Product) error {
	if !c.enabled() || len(products) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, cacheKey(p.ID), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
