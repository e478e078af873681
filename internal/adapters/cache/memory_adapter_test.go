package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trialmatch/internal/domain/providers"
)

func TestMemoryAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter(8, time.Minute)

	_, err := c.Get(ctx, "geo:missing")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	value := []byte(`{"latitude":1,"longitude":2}`)
	require.NoError(t, c.Set(ctx, "geo:a", value, time.Hour))
	value[0] = 'x'

	got, err := c.Get(ctx, "geo:a")
	require.NoError(t, err)
	assert.Equal(t, `{"latitude":1,"longitude":2}`, string(got))

	require.NoError(t, c.Delete(ctx, "geo:a"))
	_, err = c.Get(ctx, "geo:a")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}

func TestMemoryAdapter_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAdapter(2, time.Minute)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	_, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err := c.Get(ctx, "b")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
}
