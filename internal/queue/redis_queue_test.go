package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client), mr
}

func TestJobValidate(t *testing.T) {
	assert.NoError(t, (&Job{Type: JobFleetRefresh, TenantID: "acme"}).Validate())
	assert.NoError(t, (&Job{Type: JobVesselRefresh, TenantID: "acme", VesselID: "v-1"}).Validate())
	assert.Error(t, (&Job{Type: JobFleetRefresh}).Validate())
	assert.Error(t, (&Job{Type: JobVesselRefresh, TenantID: "acme"}).Validate())
	assert.Error(t, (&Job{Type: "domain_check", TenantID: "acme"}).Validate())
}

func TestJobScore(t *testing.T) {
	created := time.Date(2025, 12, 12, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, float64(created.Unix()), (&Job{CreatedAt: created}).score())
	assert.Equal(t, float64(3), (&Job{Priority: 3, CreatedAt: created}).score())
}

func TestDecodeJob(t *testing.T) {
	job := &Job{ID: "j-1", Type: JobFleetRefresh, TenantID: "acme"}
	data, err := json.Marshal(job)
	require.NoError(t, err)

	got, err := decodeJob(string(data))
	require.NoError(t, err)
	assert.Equal(t, "acme", got.TenantID)
	assert.Equal(t, JobFleetRefresh, got.Type)

	_, err = decodeJob(42)
	assert.Error(t, err)
	_, err = decodeJob("{")
	assert.Error(t, err)
}

func TestRedisQueuePushPop(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	created := time.Date(2025, 12, 12, 20, 0, 0, 0, time.UTC)

	require.NoError(t, q.Push(ctx, &Job{ID: "late", Type: JobFleetRefresh, TenantID: "acme", CreatedAt: created.Add(time.Minute)}))
	require.NoError(t, q.Push(ctx, &Job{ID: "early", Type: JobVesselRefresh, TenantID: "globex", VesselID: "v-1", CreatedAt: created}))

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	job, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "early", job.ID)
	assert.Equal(t, "v-1", job.VesselID)

	job, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", job.ID)
	assert.Equal(t, "acme", job.TenantID)

	n, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueueRejectsInvalidJob(t *testing.T) {
	q, _ := newTestQueue(t)

	assert.Error(t, q.Push(context.Background(), &Job{Type: JobFleetRefresh}))
	n, err := q.Length(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueuePopTimesOut(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.Pop(context.Background(), 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRedisQueuePopFailsWhenRedisDown(t *testing.T) {
	q, mr := newTestQueue(t)
	mr.Close()

	_, err := q.Pop(context.Background(), 100*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}
