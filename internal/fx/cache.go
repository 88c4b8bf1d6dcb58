package fx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "fx:rate"

// RateCache stores pair rates in Redis under a short TTL. A nil cache is
// valid and behaves as a permanent miss.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRateCache instantiates the cache helper.
func NewRateCache(client *redis.Client, ttl time.Duration) *RateCache {
	return &RateCache{client: client, ttl: ttl}
}

// Get returns the cached rate for a pair, reporting whether it was present.
func (c *RateCache) Get(ctx context.Context, pair Pair) (float64, bool, error) {
	if c == nil || c.client == nil {
		return 0, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(pair)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		return 0, false, nil
	}
	return rate, true, nil
}

// Set stores the rate for a pair.
func (c *RateCache) Set(ctx context.Context, pair Pair, rate float64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, c.key(pair), strconv.FormatFloat(rate, 'f', -1, 64), c.ttl).Err()
}

func (c *RateCache) key(pair Pair) string {
	return fmt.Sprintf("%s:%s", cacheKeyPrefix, pair.Key())
}
