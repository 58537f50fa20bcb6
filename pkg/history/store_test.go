package history

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSeenAndMark(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	seen, err := s.Seen(ctx, "expiry-2026-08", "@user1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSent(ctx, "expiry-2026-08", "@user1"))

	seen, err = s.Seen(ctx, "expiry-2026-08", "@user1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStoreRunKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.MarkSent(ctx, "run-a", "@user1"))

	seen, err := s.Seen(ctx, "run-b", "@user1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.MarkSent(ctx, "run", "@user")
			_, _ = s.Seen(ctx, "run", "@user")
		}(i)
	}
	wg.Wait()

	seen, err := s.Seen(ctx, "run", "@user")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{}, nil)
	require.Error(t, err)
}
