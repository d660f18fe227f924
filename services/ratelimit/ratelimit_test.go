package ratelimitsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAllow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := store.Allow(ctx, "usr1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, err := store.Allow(ctx, "usr1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "4th request should be limited")

	// separate keys have separate buckets
	ok, err = store.Allow(ctx, "usr2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreWindowReset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.Allow(ctx, "usr1", 1, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Allow(ctx, "usr1", 1, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(5 * time.Millisecond)

	ok, err = store.Allow(ctx, "usr1", 1, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok, "expired window should reset the counter")
}
