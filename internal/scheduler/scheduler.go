package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leozw/vessel-guardian/internal/core"
	"github.com/leozw/vessel-guardian/internal/queue"
	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("work queue full")

type TenantLister interface {
	ListActiveTenants(ctx context.Context) ([]*core.Tenant, error)
}

// Publisher accepts refresh jobs. *queue.RedisQueue is the production publisher.
type Publisher interface {
	Push(ctx context.Context, job *queue.Job) error
}

type Config struct {
	Interval    time.Duration
	WorkerCount int
	QueueSize   int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	return c
}

// Scheduler turns the list of active tenants into fleet refresh jobs on a fixed
// interval.
type Scheduler struct {
	tenants TenantLister
	logger  *zap.Logger
	config  Config
	workers []*Worker
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewScheduler(tenants TenantLister, logger *zap.Logger, cfg Config) *Scheduler {
	return &Scheduler{
		tenants: tenants,
		logger:  logger,
		config:  cfg.withDefaults(),
		now:     time.Now,
	}
}

// Start runs the scheduler and its workers in process until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, refresher Refresher) {
	s.logger.Info("Starting scheduler",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.Duration("interval", s.config.Interval),
	)

	workQueue := make(chan *queue.Job, s.config.QueueSize)
	s.workers = make([]*Worker, s.config.WorkerCount)

	for i := 0; i < s.config.WorkerCount; i++ {
		worker := NewWorker(i, refresher, s.logger)
		s.workers[i] = worker
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Start(ctx, workQueue)
		}(worker)
	}

	s.loop(ctx, chanPublisher(workQueue))

	s.logger.Info("Stopping scheduler")
	close(workQueue)
	s.wg.Wait()
}

// Run publishes jobs to pub until ctx is cancelled. Workers run elsewhere.
func (s *Scheduler) Run(ctx context.Context, pub Publisher) {
	s.logger.Info("Starting scheduler", zap.Duration("interval", s.config.Interval))
	s.loop(ctx, pub)
	s.logger.Info("Stopping scheduler")
}

func (s *Scheduler) loop(ctx context.Context, pub Publisher) {
	s.Schedule(ctx, pub)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Schedule(ctx, pub)
		}
	}
}

// Schedule publishes one fleet refresh job per active tenant and returns how many
// were accepted.
func (s *Scheduler) Schedule(ctx context.Context, pub Publisher) int {
	tenants, err := s.tenants.ListActiveTenants(ctx)
	if err != nil {
		s.logger.Error("Failed to list active tenants", zap.Error(err))
		return 0
	}

	scheduled := 0
	for _, t := range tenants {
		job := &queue.Job{
			ID:        uuid.New().String(),
			Type:      queue.JobFleetRefresh,
			TenantID:  t.ID,
			CreatedAt: s.now(),
		}
		if err := pub.Push(ctx, job); err != nil {
			s.logger.Warn("Failed to schedule fleet refresh",
				zap.Error(err),
				zap.String("tenant_id", t.ID),
			)
			continue
		}
		scheduled++
		s.logger.Debug("Scheduled fleet refresh", zap.String("tenant_id", t.ID))
	}
	return scheduled
}

type chanPublisher chan<- *queue.Job

func (c chanPublisher) Push(_ context.Context, job *queue.Job) error {
	select {
	case c <- job:
		return nil
	default:
		return ErrQueueFull
	}
}
