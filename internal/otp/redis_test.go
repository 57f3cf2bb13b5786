package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(5 * time.Minute).Truncate(time.Millisecond)

	require.NoError(t, store.Put(ctx, "+15551234567", Record{Code: "123456", ExpiresAt: expiry}))

	rec, ok, err := store.Get(ctx, "+15551234567")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "123456", rec.Code)
	assert.True(t, rec.ExpiresAt.Equal(expiry))

	require.NoError(t, store.Delete(ctx, "+15551234567"))
	_, ok, err = store.Get(ctx, "+15551234567")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreExpiredRecordNotStored(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "+15551234567", Record{Code: "123456", ExpiresAt: time.Now().Add(-time.Second)}))

	_, ok, err := store.Get(ctx, "+15551234567")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreDeleteIfCode(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(5 * time.Minute)

	require.NoError(t, store.Put(ctx, "+15551234567", Record{Code: "654321", ExpiresAt: expiry}))

	deleted, err := store.DeleteIfCode(ctx, "+15551234567", "111111")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = store.DeleteIfCode(ctx, "+15551234567", "654321")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteIfCode(ctx, "+15551234567", "654321")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRedisStoreTTLTracksExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "+15551234567", Record{Code: "123456", ExpiresAt: time.Now().Add(time.Minute)}))

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "+15551234567")
	require.NoError(t, err)
	assert.False(t, ok)
}
