package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTimeout = errors.New("queue timeout")

const (
	JobFleetRefresh  = "fleet_refresh"
	JobVesselRefresh = "vessel_refresh"

	DefaultQueueName = "vessel_refresh_jobs"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	TenantID  string    `json:"tenant_id"`
	VesselID  string    `json:"vessel_id,omitempty"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

func (j *Job) Validate() error {
	if j.TenantID == "" {
		return errors.New("job has no tenant")
	}
	switch j.Type {
	case JobFleetRefresh:
		return nil
	case JobVesselRefresh:
		if j.VesselID == "" {
			return errors.New("vessel refresh job has no vessel")
		}
		return nil
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
}

// score orders jobs in the sorted set: an explicit priority wins, otherwise jobs
// run in creation order.
func (j *Job) score() float64 {
	if j.Priority != 0 {
		return float64(j.Priority)
	}
	if j.CreatedAt.IsZero() {
		return float64(time.Now().Unix())
	}
	return float64(j.CreatedAt.Unix())
}

func decodeJob(member interface{}) (*Job, error) {
	raw, ok := member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected queue member type %T", member)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

type RedisQueue struct {
	client    *redis.Client
	queueName string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueName: DefaultQueueName,
	}
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.ZAdd(ctx, q.queueName, redis.Z{
		Score:  job.score(),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the lowest-scored job.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BZPopMin(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}
	return decodeJob(result.Member)
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueName).Result()
}
