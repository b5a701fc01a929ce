package runguard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces claim keys in a shared Redis
const DefaultKeyPrefix = "billsync:runguard:"

// RedisGuard stores claims in Redis so every instance sharing the server
// sees the same claims
type RedisGuard struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisGuard creates a guard on an existing client. An empty prefix uses DefaultKeyPrefix.
func NewRedisGuard(client *redis.Client, keyPrefix string) *RedisGuard {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Claim sets the key with SET NX and ttl. Only the first caller gets true.
func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("runguard: claim %s: %w", key, err)
	}
	return ok, nil
}

// Claimed reports whether key holds an unexpired claim
func (g *RedisGuard) Claimed(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, g.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("runguard: check %s: %w", key, err)
	}
	return n > 0, nil
}

// Release drops a claim so the key can be claimed again
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("runguard: release %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller
func (g *RedisGuard) Close() error {
	return nil
}

var _ Guard = (*RedisGuard)(nil)
