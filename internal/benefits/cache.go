package benefits

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "beneficios:"

// Cache keeps worker benefit descriptors in Redis so repeated kiosk lookups
// do not hammer the workers table. Stock counters are never cached: they are
// authoritative for routing and must be read fresh.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetWorker returns the cached descriptor, or nil on miss.
func (c *Cache) GetWorker(ctx context.Context, rut string) (*Worker, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, cacheKeyPrefix+NormalizeRUT(rut)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var w Worker
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// PutWorker stores the descriptor under the configured TTL.
func (c *Cache) PutWorker(ctx context.Context, w *Worker) error {
	if c == nil || c.client == nil || w == nil {
		return nil
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+w.RUT, raw, c.ttl).Err()
}

// Invalidate drops the cached descriptor for a RUT.
func (c *Cache) Invalidate(ctx context.Context, rut string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKeyPrefix+NormalizeRUT(rut)).Err()
}
