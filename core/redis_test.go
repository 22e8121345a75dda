package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueue_ReserveAck(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewRedisQueue(client)
	ctx := context.Background()

	_, err := q.Reserve(ctx, RevalidatePendingKey, RevalidateProcessingKey, time.Minute)
	require.True(t, errors.Is(err, redis.Nil), "empty queue returns redis.Nil, got %v", err)

	require.NoError(t, q.Enqueue(ctx, RevalidatePendingKey, "a"))
	require.NoError(t, q.Enqueue(ctx, RevalidatePendingKey, "b"))

	job, err := q.Reserve(ctx, RevalidatePendingKey, RevalidateProcessingKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "a", job, "FIFO order")

	n, err := client.ZCard(ctx, RevalidateProcessingKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, q.Ack(ctx, RevalidateProcessingKey, job))
	n, err = client.ZCard(ctx, RevalidateProcessingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueue_RequeueExpired(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewRedisQueue(client)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, RevalidatePendingKey, InvoicesPath))
	_, err := q.Reserve(ctx, RevalidatePendingKey, RevalidateProcessingKey, time.Second)
	require.NoError(t, err)

	moved, err := q.RequeueExpired(ctx, RevalidateProcessingKey, RevalidatePendingKey, time.Now())
	require.NoError(t, err)
	assert.Empty(t, moved, "not expired yet")

	moved, err = q.RequeueExpired(ctx, RevalidateProcessingKey, RevalidatePendingKey, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{InvoicesPath}, moved)

	job, err := q.Reserve(ctx, RevalidatePendingKey, RevalidateProcessingKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, InvoicesPath, job)
}

func TestMetricsService_Queue(t *testing.T) {
	_, client := newTestRedis(t)
	q := NewRedisQueue(client)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, RevalidatePendingKey, "a"))
	require.NoError(t, q.Enqueue(ctx, RevalidatePendingKey, "b"))
	_, err := q.Reserve(ctx, RevalidatePendingKey, RevalidateProcessingKey, -time.Second)
	require.NoError(t, err)

	qm, err := NewMetricsService(client).Queue(ctx)
	require.NoError(t, err)
	assert.Equal(t, QueueMetrics{Pending: 1, Processing: 1, ExpiredCandidate: 1}, qm)
}
