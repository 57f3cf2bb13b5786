package otp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiry := time.Now().Add(5 * time.Minute)

	require.NoError(t, store.Put(ctx, "+15551234567", Record{Code: "111111", ExpiresAt: expiry}))
	require.NoError(t, store.Put(ctx, "+15551234567", Record{Code: "222222", ExpiresAt: expiry}))

	rec, ok, err := store.Get(ctx, "+15551234567")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "222222", rec.Code)
}

func TestMemoryStoreDeleteIfCode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiry := time.Now().Add(5 * time.Minute)

	require.NoError(t, store.Put(ctx, "+15551234567", Record{Code: "654321", ExpiresAt: expiry}))

	deleted, err := store.DeleteIfCode(ctx, "+15551234567", "111111")
	require.NoError(t, err)
	assert.False(t, deleted, "mismatched code must not delete")

	deleted, err = store.DeleteIfCode(ctx, "+15551234567", "654321")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteIfCode(ctx, "+15551234567", "654321")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete of the same code must lose")

	_, ok, err := store.Get(ctx, "+15551234567")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreConcurrentKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiry := time.Now().Add(5 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("+1555000%04d", i)
			code := fmt.Sprintf("%06d", 100000+i)
			if err := store.Put(ctx, key, Record{Code: code, ExpiresAt: expiry}); err != nil {
				t.Error(err)
				return
			}
			deleted, err := store.DeleteIfCode(ctx, key, code)
			if err != nil {
				t.Error(err)
				return
			}
			if !deleted {
				t.Errorf("expected delete for %s", key)
			}
		}(i)
	}
	wg.Wait()
}
