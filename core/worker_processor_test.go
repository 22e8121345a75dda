package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warmerFunc func(ctx context.Context, path string) error

func (f warmerFunc) Warm(ctx context.Context, path string) error { return f(ctx, path) }

func TestRevalidationProcessor(t *testing.T) {
	var warmed []string
	p := NewRevalidationProcessor().Register(InvoicesPath, warmerFunc(func(_ context.Context, path string) error {
		warmed = append(warmed, path)
		return nil
	}))

	require.NoError(t, p.Process(context.Background(), " /dashboard/invoices\n"))
	assert.Equal(t, []string{InvoicesPath}, warmed)

	err := p.Process(context.Background(), "/dashboard/unknown")
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestRevalidationProcessor_WarmFailure(t *testing.T) {
	boom := errors.New("db down")
	p := NewRevalidationProcessor().Register(InvoicesPath, warmerFunc(func(context.Context, string) error { return boom }))
	err := p.Process(context.Background(), InvoicesPath)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnknownView)
}

func TestRevalidationProcessor_WarmsCurrentVersion(t *testing.T) {
	_, client := newTestRedis(t)
	queue := NewRedisQueue(client)
	views := NewViewCache(client, queue, time.Minute)
	store := &countingLister{memInvoiceStore: newMemInvoiceStore()}
	lists := NewInvoiceListService(store, views, 10)
	p := NewRevalidationProcessor().Register(InvoicesPath, lists)
	ctx := context.Background()

	require.NoError(t, views.Invalidate(ctx, InvoicesPath))
	job, err := queue.Reserve(ctx, RevalidatePendingKey, RevalidateProcessingKey, time.Minute)
	require.NoError(t, err)
	require.NoError(t, p.Process(ctx, job))
	require.NoError(t, queue.Ack(ctx, RevalidateProcessingKey, job))

	_, err = lists.Page(ctx, "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lists, "the reader hits the page the worker rendered")
}
