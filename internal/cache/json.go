package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/resilience"
)

// JSON wraps Redis helpers for JSON payloads. A nil *JSON or a JSON without a
// client behaves as an always-empty cache.
type JSON struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	breaker *resilience.Breaker
}

// NewJSON constructs a cache helper storing keys under prefix.
func NewJSON(client *redis.Client, prefix string, ttl time.Duration) *JSON {
	return &JSON{client: client, ttl: ttl, prefix: prefix}
}

// WithBreaker makes reads and writes skip Redis while b is open. Only use it
// for read-through caches; a skipped read is reported as a miss.
func (c *JSON) WithBreaker(b *resilience.Breaker) *JSON {
	c.breaker = b
	return c
}

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Get unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, c.prefix+key).Bytes()
		return err
	}, isMiss)
	if err != nil {
		if isMiss(err) || errors.Is(err, resilience.ErrOpenCircuit) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set serialises v as JSON and stores it with the configured TTL.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
	}, nil)
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return nil
	}
	return err
}

// Delete evicts key. Evictions are attempted even while the breaker is open.
func (c *JSON) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	err := c.client.Del(ctx, c.prefix+key).Err()
	c.breaker.Report(ctx, err == nil)
	return err
}

// KeyProduct returns the cache key of a product pricing snapshot.
func KeyProduct(id string) string {
	return "product:" + id
}

// KeyPromoTable is the cache key of the promo code table.
const KeyPromoTable = "promo:table"

// KeyShippingPolicy is the cache key of the shipping policy.
const KeyShippingPolicy = "shipping:policy"
