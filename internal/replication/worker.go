package replication

import (
	"context"
	"log"
	"math"
	"time"
)

type WorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxBackoff time.Duration
	StaleAfter time.Duration
}

// Worker drains the queue on a fixed interval. Run it in a single goroutine.
type Worker struct {
	queue *Queue
	exec  Executor
	cfg   WorkerConfig
}

func NewWorker(queue *Queue, exec Executor, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Minute
	}
	return &Worker{queue: queue, exec: exec, cfg: cfg}
}

// Backoff is the delay after the given number of failed attempts: 2^attempts
// seconds, never more than max.
func Backoff(attempts int, max time.Duration) time.Duration {
	if attempts >= 32 {
		return max
	}
	d := time.Duration(math.Pow(2, float64(attempts))) * time.Second
	if d > max {
		return max
	}
	return d
}

// Run resets abandoned tasks, then processes batches until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if n, err := w.queue.ResetStale(ctx, w.cfg.StaleAfter); err != nil {
		log.Printf("[REPLICATION] failed to reset stale tasks: %v", err)
	} else if n > 0 {
		log.Printf("[REPLICATION] returned %d stale in_progress tasks to pending", n)
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[REPLICATION] worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of due tasks and returns how many succeeded.
func (w *Worker) RunOnce(ctx context.Context) int {
	tasks, err := w.queue.Due(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Printf("[REPLICATION] failed to pick tasks: %v", err)
		return 0
	}

	done := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return done
		}
		if w.process(ctx, task) {
			done++
		}
	}
	return done
}

func (w *Worker) process(ctx context.Context, task Task) bool {
	claimed, err := w.queue.Claim(ctx, task.ID)
	if err != nil {
		log.Printf("[REPLICATION] failed to claim task %s: %v", task.ID, err)
		return false
	}
	if !claimed {
		return false
	}

	target, err := ParseTarget(task.Conn)
	if err == nil {
		err = w.exec.Exec(ctx, target, task.SQL, task.Params)
	}
	if err == nil {
		if err := w.queue.MarkDone(ctx, task.ID); err != nil {
			log.Printf("[REPLICATION] failed to mark task %s done: %v", task.ID, err)
			return false
		}
		return true
	}

	attempts := task.Attempts + 1
	next := w.queue.now().Add(Backoff(attempts, w.cfg.MaxBackoff))
	log.Printf("[REPLICATION] task %s attempt %d failed: %v", task.ID, attempts, err)
	if err := w.queue.MarkFailed(ctx, task.ID, attempts, err.Error(), next); err != nil {
		log.Printf("[REPLICATION] failed to record failure for task %s: %v", task.ID, err)
	}
	return false
}
