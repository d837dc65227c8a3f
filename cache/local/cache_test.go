package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	t.Helper()
	c, err := NewCache(Config{GCInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetSetDel(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "session:abc", "1", 0))
	v, err := c.Get(ctx, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	ok, err := c.Exists(ctx, "session:abc")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Del(ctx, "session:abc"))
	ok, err = c.Exists(ctx, "session:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ok, _ := c.Exists(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestSetNX_GuardsFirstWriter(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "trade:commit:1_2", "x", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "trade:commit:1_2", "y", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second writer loses")

	v, err := c.Get(ctx, "trade:commit:1_2")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestSetNX_ExpiredKeyReusable(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "guard", "x", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		ok, _ := c.SetNX(ctx, "guard", "y", time.Minute)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestExpire(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Expire(ctx, "missing", time.Minute), ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Expire(ctx, "k", 10*time.Millisecond))
	require.Eventually(t, func() bool {
		ok, _ := c.Exists(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
