package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/leozw/vessel-guardian/internal/app"
	"github.com/leozw/vessel-guardian/internal/config"
	"github.com/leozw/vessel-guardian/internal/queue"
	"github.com/leozw/vessel-guardian/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	jobQueue := queue.NewRedisQueue(a.Redis)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	for i := 0; i < cfg.Scheduler.WorkerCount; i++ {
		worker := scheduler.NewWorker(i, a.Orchestrator, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Consume(ctx, jobQueue, cfg.Scheduler.PollTimeout)
		}()
	}

	go a.Metrics.StartRemoteWrite(ctx)

	logger.Info("Worker started", zap.Int("worker_count", cfg.Scheduler.WorkerCount))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	wg.Wait()
	logger.Info("Worker exited")
}
