package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/assetcart/pkg/redis"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	manager, err := NewManager(client, ttl)
	require.NoError(t, err)
	return manager, srv
}

func TestMarkThenProcessed(t *testing.T) {
	ctx := context.Background()
	manager, srv := newTestManager(t, time.Hour)
	orderID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	seen, err := manager.Processed(ctx, "orders", orderID)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, manager.MarkProcessed(ctx, "orders", orderID))
	key := "ac:idempotency:order:processed:orders:" + orderID.String()
	require.True(t, srv.Exists(key))
	require.Equal(t, time.Hour, srv.TTL(key))

	seen, err = manager.Processed(ctx, "orders", orderID)
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = manager.Processed(ctx, "audit", orderID)
	require.NoError(t, err)
	require.False(t, seen, "consumers are tracked independently")
}

func TestMarkProcessedKeepsFirstTimestamp(t *testing.T) {
	ctx := context.Background()
	manager, srv := newTestManager(t, time.Hour)
	orderID := uuid.New()
	key := "ac:idempotency:order:processed:orders:" + orderID.String()

	require.NoError(t, srv.Set(key, "2026-01-01T00:00:00Z"))
	require.NoError(t, manager.MarkProcessed(ctx, "orders", orderID))

	got, err := srv.Get(key)
	require.NoError(t, err)
	require.Equal(t, "2026-01-01T00:00:00Z", got)
}

func TestManagerRejectsInvalidInput(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)

	manager, _ := newTestManager(t, 0)
	_, err = NewManager(manager.store, -time.Second)
	require.Error(t, err)

	_, err = manager.Processed(context.Background(), "", uuid.New())
	require.Error(t, err)
	require.Error(t, manager.MarkProcessed(context.Background(), "orders", uuid.Nil))
}
