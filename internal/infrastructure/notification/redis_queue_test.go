package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/tests/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueue_Enqueue(t *testing.T) {
	client := testutil.NewRedisClient(t)
	ctx := context.Background()
	queue := NewRedisQueue(client, "test:notifications")

	first := invoicing.Notification{
		ID:            uuid.New(),
		Kind:          invoicing.NotificationKindInvoiceGenerated,
		Recipient:     "billing@acme.test",
		Subject:       "Invoice INV-2024-0001",
		Body:          "Total 119,00 €",
		InvoiceID:     uuid.New(),
		InvoiceNumber: "INV-2024-0001",
		ProjectID:     uuid.New(),
		CreatedAt:     time.Date(2024, time.January, 15, 6, 0, 0, 0, time.UTC),
	}
	second := first
	second.ID = uuid.New()
	second.Recipient = "cfo@acme.test"

	require.NoError(t, queue.Enqueue(ctx, first))
	require.NoError(t, queue.Enqueue(ctx, second))

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	raw, err := client.LPop(ctx, "test:notifications").Result()
	require.NoError(t, err)

	var decoded invoicing.Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, first.ID, decoded.ID)
	assert.Equal(t, "billing@acme.test", decoded.Recipient)
	assert.Equal(t, "INV-2024-0001", decoded.InvoiceNumber)
	assert.True(t, first.CreatedAt.Equal(decoded.CreatedAt))
}

func TestRedisQueue_EnqueueFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	err := NewRedisQueue(client, "").Enqueue(context.Background(), invoicing.Notification{Kind: "invoice_generated"})
	require.Error(t, err)
	assert.ErrorIs(t, err, invoicing.ErrNotification)
}

func TestNewRedisQueue_DefaultKey(t *testing.T) {
	assert.Equal(t, DefaultQueueKey, NewRedisQueue(nil, "").Key())
	assert.Equal(t, "custom", NewRedisQueue(nil, "custom").Key())
}
