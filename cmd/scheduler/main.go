package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leozw/vessel-guardian/internal/cache"
	"github.com/leozw/vessel-guardian/internal/config"
	"github.com/leozw/vessel-guardian/internal/db"
	"github.com/leozw/vessel-guardian/internal/metrics"
	"github.com/leozw/vessel-guardian/internal/queue"
	"github.com/leozw/vessel-guardian/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	database, err := db.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	repo := db.NewRepository(database)

	client := cache.NewRedisClient(cfg.Redis.URL)
	defer client.Close()
	jobQueue := queue.NewRedisQueue(client)

	collector := metrics.NewCollector(cfg.Mimir, prometheus.NewRegistry(), logger)

	sched := scheduler.NewScheduler(repo, logger, scheduler.Config{
		Interval:    cfg.Scheduler.Interval,
		WorkerCount: cfg.Scheduler.WorkerCount,
		QueueSize:   cfg.Scheduler.QueueSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx, countingPublisher{queue: jobQueue, metrics: collector})
	go reportQueueSize(ctx, jobQueue, collector, logger)
	go collector.StartRemoteWrite(ctx)

	logger.Info("Scheduler started", zap.Duration("interval", cfg.Scheduler.Interval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	cancel()
	logger.Info("Scheduler stopped")
}

type countingPublisher struct {
	queue   *queue.RedisQueue
	metrics *metrics.Collector
}

func (p countingPublisher) Push(ctx context.Context, job *queue.Job) error {
	if err := p.queue.Push(ctx, job); err != nil {
		return err
	}
	p.metrics.RecordScheduled(job.TenantID)
	return nil
}

func reportQueueSize(ctx context.Context, q *queue.RedisQueue, collector *metrics.Collector, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.Length(ctx)
			if err != nil {
				logger.Warn("Failed to read queue length", zap.Error(err))
				continue
			}
			collector.RecordQueueSize(n)
		}
	}
}
