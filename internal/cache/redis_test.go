package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient("redis://" + mr.Addr() + "/0")
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), mr
}

func TestRedisTTL(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "acme", settings{Provider: "vendor", Enabled: true}, time.Minute))
	assert.True(t, mr.Exists("vessel:cache:acme"))

	var got settings
	require.NoError(t, c.GetJSON(ctx, "acme", &got))
	assert.Equal(t, settings{Provider: "vendor", Enabled: true}, got)

	mr.FastForward(time.Minute)
	assert.ErrorIs(t, c.GetJSON(ctx, "acme", &got), ErrMiss)
}

func TestRedisDelete(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "acme", settings{Provider: "vendor"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "acme"))

	var got settings
	assert.ErrorIs(t, c.GetJSON(ctx, "acme", &got), ErrMiss)
	assert.ErrorIs(t, c.GetJSON(ctx, "never-set", &got), ErrMiss)
}

func TestRedisUnavailable(t *testing.T) {
	c, mr := newTestRedis(t)
	mr.Close()

	var got settings
	err := c.GetJSON(context.Background(), "acme", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNewRedisClientAcceptsAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr())
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()).Err())
}
