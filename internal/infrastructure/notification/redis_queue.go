// Package notification delivers invoicing notifications to the queue consumed
// by the mail worker.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the Redis list notifications are appended to
const DefaultQueueKey = "billsync:notifications"

// RedisQueue appends each notification as one JSON document to a Redis list
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue writing to key. An empty key uses DefaultQueueKey.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes the notification to the tail of the list
func (q *RedisQueue) Enqueue(ctx context.Context, n invoicing.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: encode %s for %s: %v", invoicing.ErrNotification, n.Kind, n.Recipient, err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("%w: push to %s: %v", invoicing.ErrNotification, q.key, err)
	}
	return nil
}

// Len returns the number of queued notifications
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Key returns the list key
func (q *RedisQueue) Key() string {
	return q.key
}

var _ invoicing.NotificationQueue = (*RedisQueue)(nil)
