package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one job id.
type Handler func(ctx context.Context, jobID string) error

// RunWorkers feeds tasks from r to a fixed pool of workers until ctx is
// cancelled or the task channel closes, then waits for in-flight jobs.
func RunWorkers(ctx context.Context, r Receiver, concurrency int, handle Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	jobs := make(chan Task, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for t := range jobs {
				runTask(ctx, workerID, t, handle)
			}
		}(i)
	}

	// dispatcher
	tasks := r.Tasks()
loop:
	for {
		select {
		case <-ctx.Done():
			slog.Info("workers shutting down")
			break loop
		case t, ok := <-tasks:
			if !ok {
				slog.Info("task channel closed")
				break loop
			}
			select {
			case jobs <- t:
			case <-ctx.Done():
				// all workers busy
				_ = t.Nack()
				slog.Info("workers shutting down")
				break loop
			}
		}
	}
	close(jobs)
	wg.Wait()
}

func runTask(ctx context.Context, workerID int, t Task, handle Handler) {
	jobID, err := DecodeJob(t.Payload())
	if err != nil {
		slog.Warn("bad job message", "worker", workerID, "err", err)
		_ = t.Nack()
		return
	}

	start := time.Now()
	if err := handle(ctx, jobID); err != nil {
		slog.Error("job failed", "worker", workerID, "job_id", jobID, "cost", time.Since(start), "err", err)
		_ = t.Nack()
		return
	}
	if err := t.Ack(); err != nil {
		slog.Error("ack failed", "worker", workerID, "job_id", jobID, "err", err)
	}
	if cost := time.Since(start); cost > 2*time.Second {
		slog.Info("job_timing", "worker", workerID, "job_id", jobID, "total", cost)
	}
}
