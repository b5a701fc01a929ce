// Package runguard provides claim-once keys used to keep scheduled jobs from
// running twice for the same slot.
package runguard

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Guard grants a key to the first caller until its ttl expires
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Claimed(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

const pingTimeout = 5 * time.Second

// Factory picks a Redis or in-memory guard
type Factory struct {
	client                *redis.Client
	clock                 clock.Clock
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithClock sets the clock used by in-memory guards
func WithClock(c clock.Clock) FactoryOption {
	return func(f *Factory) {
		f.clock = c
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// an in-memory guard. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a factory. client may be nil when Redis is not configured.
func NewFactory(client *redis.Client, opts ...FactoryOption) *Factory {
	f := &Factory{
		client:                client,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis guard when the server answers a ping, otherwise an
// in-memory guard if fallback is allowed
func (f *Factory) Create(ctx context.Context) (Guard, error) {
	err := f.ping(ctx)
	if err == nil {
		f.logger.Info("using Redis run guard")
		return NewRedisGuard(f.client, ""), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("runguard: redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run guard. "+
		"Scheduled runs are only deduplicated within this process.",
		zap.Error(err),
	)
	return NewMemoryGuard(f.clock), nil
}

func (f *Factory) ping(ctx context.Context) error {
	if f.client == nil {
		return fmt.Errorf("no redis client configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return f.client.Ping(ctx).Err()
}
