package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/leozw/vessel-guardian/internal/queue"
	"github.com/leozw/vessel-guardian/internal/refresh"
	"github.com/leozw/vessel-guardian/internal/tenant"
	"go.uber.org/zap"
)

type Refresher interface {
	RefreshFleet(ctx context.Context, tid tenant.ID) (*refresh.FleetResult, error)
	RefreshVessel(ctx context.Context, tid tenant.ID, vesselID string) (*refresh.VesselSnapshot, error)
}

// Consumer hands out queued jobs. *queue.RedisQueue is the production consumer.
type Consumer interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

type Worker struct {
	id        int
	refresher Refresher
	logger    *zap.Logger
}

func NewWorker(id int, refresher Refresher, logger *zap.Logger) *Worker {
	return &Worker{
		id:        id,
		refresher: refresher,
		logger:    logger.With(zap.Int("worker_id", id)),
	}
}

// Start processes jobs from workQueue until it is closed or ctx is cancelled.
func (w *Worker) Start(ctx context.Context, workQueue <-chan *queue.Job) {
	w.logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopped")
			return
		case job, ok := <-workQueue:
			if !ok {
				w.logger.Info("Work queue closed")
				return
			}
			w.processJob(ctx, job)
		}
	}
}

// Consume pops jobs from c until ctx is cancelled.
func (w *Worker) Consume(ctx context.Context, c Consumer, pollTimeout time.Duration) {
	w.logger.Info("Worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info("Worker stopped")
			return
		}
		job, err := c.Pop(ctx, pollTimeout)
		switch {
		case err == nil:
			w.processJob(ctx, job)
		case errors.Is(err, queue.ErrTimeout):
		case ctx.Err() != nil:
		default:
			w.logger.Error("Failed to pop job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	start := time.Now()

	if err := job.Validate(); err != nil {
		w.logger.Error("Dropping invalid job", zap.Error(err), zap.String("job_id", job.ID))
		return
	}
	tid, err := tenant.Require(job.TenantID)
	if err != nil {
		w.logger.Error("Dropping job without tenant", zap.String("job_id", job.ID))
		return
	}

	w.logger.Debug("Processing job",
		zap.String("job_id", job.ID),
		zap.String("job_type", job.Type),
		zap.String("tenant_id", job.TenantID),
	)

	switch job.Type {
	case queue.JobFleetRefresh:
		result, err := w.refresher.RefreshFleet(ctx, tid)
		if err != nil {
			w.logger.Error("Fleet refresh failed",
				zap.Error(err),
				zap.String("tenant_id", job.TenantID),
			)
			return
		}
		w.logger.Debug("Fleet refresh completed",
			zap.String("tenant_id", job.TenantID),
			zap.Int("vessels", len(result.Vessels)),
			zap.Strings("degraded", result.Degraded),
			zap.Duration("duration", time.Since(start)),
		)
	case queue.JobVesselRefresh:
		snap, err := w.refresher.RefreshVessel(ctx, tid, job.VesselID)
		if err != nil {
			w.logger.Error("Vessel refresh failed",
				zap.Error(err),
				zap.String("tenant_id", job.TenantID),
				zap.String("vessel_id", job.VesselID),
			)
			return
		}
		w.logger.Debug("Vessel refresh completed",
			zap.String("tenant_id", job.TenantID),
			zap.String("vessel_id", job.VesselID),
			zap.String("outcome", string(snap.Outcome)),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
