package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Task is one unit of periodic background work.
type Task interface {
	Run(ctx context.Context) error
}

// Worker runs a Task on a fixed interval until stopped.
type Worker struct {
	task     Task
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(task Task, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		task:     task,
		interval: interval,
		logger:   logger.With("component", "worker"),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start blocks running the task on every tick until ctx is done or Stop is
// called. A failed run is logged and retried on the next tick.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.logger.Info("worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", "reason", "context cancelled")
			return
		case <-w.stopChan:
			w.logger.Info("worker stopped", "reason", "stop signal")
			return
		case <-ticker.C:
			if err := w.task.Run(ctx); err != nil {
				w.logger.Error("task failed", "err", err)
			}
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	w.logger.Info("worker shutdown complete")
}
