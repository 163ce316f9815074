package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/sigverifier/internal/testutil"
)

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	s := NewMemoryRevocationStore(clock)

	revoked, err := s.IsTokenInvalidated(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.InvalidateToken(ctx, "sid", time.Minute))
	revoked, err = s.IsTokenInvalidated(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, revoked)

	// A shorter invalidation does not cut an existing one short
	require.NoError(t, s.InvalidateToken(ctx, "sid", time.Second))
	clock.Advance(30 * time.Second)
	revoked, err = s.IsTokenInvalidated(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, revoked)

	clock.Advance(31 * time.Second)
	revoked, err = s.IsTokenInvalidated(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevocationStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock()
	s := NewMemoryRevocationStore(clock)

	require.NoError(t, s.InvalidateToken(ctx, "a", time.Second))
	require.NoError(t, s.InvalidateToken(ctx, "b", time.Hour))

	clock.Advance(time.Minute)
	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
