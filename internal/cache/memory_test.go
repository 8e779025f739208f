package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settings struct {
	Provider string `json:"provider"`
	Enabled  bool   `json:"enabled"`
}

func TestMemoryTTL(t *testing.T) {
	now := time.Date(2025, 12, 12, 0, 0, 0, 0, time.UTC)
	m := newMemory(10, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "acme", settings{Provider: "vendor", Enabled: true}, time.Minute))

	var got settings
	require.NoError(t, m.GetJSON(ctx, "acme", &got))
	assert.Equal(t, settings{Provider: "vendor", Enabled: true}, got)

	now = now.Add(time.Minute)
	assert.ErrorIs(t, m.GetJSON(ctx, "acme", &got), ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "a", 1, time.Hour))
	require.NoError(t, m.SetJSON(ctx, "b", 2, time.Hour))

	var v int
	require.NoError(t, m.GetJSON(ctx, "a", &v))
	require.NoError(t, m.SetJSON(ctx, "c", 3, time.Hour))

	assert.ErrorIs(t, m.GetJSON(ctx, "b", &v), ErrMiss)
	require.NoError(t, m.GetJSON(ctx, "a", &v))
	assert.Equal(t, 1, v)
	require.NoError(t, m.GetJSON(ctx, "c", &v))
	assert.Equal(t, 3, v)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "a", 1, time.Hour))
	require.NoError(t, m.SetJSON(ctx, "a", 5, time.Hour))
	var v int
	require.NoError(t, m.GetJSON(ctx, "a", &v))
	assert.Equal(t, 5, v)

	require.NoError(t, m.Delete(ctx, "a"))
	assert.ErrorIs(t, m.GetJSON(ctx, "a", &v), ErrMiss)
	assert.NoError(t, m.Delete(ctx, "missing"))
}
