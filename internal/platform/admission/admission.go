// Package admission provides the gateway's admission-control collaborator.
// The gateway treats rate limiting as an external concern: handlers only see
// the Controller interface, and the two implementations here are thin
// fixed-window counters, not a policy engine.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	platformredis "lexgate/internal/platform/redis"
)

// Controller decides whether a request identified by key may proceed.
type Controller interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisController counts requests per key in fixed one-minute windows backed
// by Redis, so limits hold across multiple gateway replicas.
type RedisController struct {
	client *platformredis.Client
	limit  int
}

// NewRedisController builds a controller allowing limit requests per minute.
func NewRedisController(client *platformredis.Client, limit int) *RedisController {
	return &RedisController{client: client, limit: limit}
}

// Allow increments the key's window counter and compares it to the limit.
// Redis failures fail open: admission control protects capacity, it is not a
// security boundary.
func (c *RedisController) Allow(ctx context.Context, key string) (bool, error) {
	window := time.Now().Unix() / 60
	counterKey := fmt.Sprintf("admission:%s:%d", key, window)

	count, err := c.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return true, fmt.Errorf("admission incr: %w", err)
	}
	if count == 1 {
		c.client.Expire(ctx, counterKey, 2*time.Minute)
	}
	return count <= int64(c.limit), nil
}

// MemoryController is the in-process fallback used in development and tests.
type MemoryController struct {
	mu     sync.Mutex
	limit  int
	window int64
	counts map[string]int
}

// NewMemoryController builds a controller allowing limit requests per minute.
func NewMemoryController(limit int) *MemoryController {
	return &MemoryController{limit: limit, counts: make(map[string]int)}
}

func (c *MemoryController) Allow(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := time.Now().Unix() / 60
	if window != c.window {
		c.window = window
		c.counts = make(map[string]int)
	}
	c.counts[key]++
	return c.counts[key] <= c.limit, nil
}
