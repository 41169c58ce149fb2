package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/logging"
)

// Task is one pass of periodic background work.
type Task interface {
	Run(ctx context.Context) error
}

// Worker runs a Task once at start and then on every interval tick until
// stopped. Task errors are logged and the loop continues.
type Worker struct {
	name     string
	task     Task
	interval time.Duration
	logger   *zap.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewWorker(name string, task Task, interval time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		name:     name,
		task:     task,
		interval: interval,
		logger:   logging.OrNop(logger).With(zap.String("worker", name)),
		cancel:   func() {},
		done:     make(chan struct{}),
	}
}

// Start launches the loop in its own goroutine. Later calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		go w.loop(ctx)
	})
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("worker started", zap.Duration("interval", w.interval))
	failures := 0
	run := func() {
		if err := w.task.Run(ctx); err != nil && ctx.Err() == nil {
			failures++
			w.logger.Error("worker pass failed", zap.Error(err), zap.Int("consecutive_failures", failures))
			return
		}
		failures = 0
	}

	run()
	if w.interval <= 0 {
		<-ctx.Done()
		w.logger.Info("worker stopped")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}

// Stop cancels the loop and waits for the current pass to finish. It is safe
// to call more than once, and before Start.
func (w *Worker) Stop() {
	w.startOnce.Do(func() { close(w.done) })
	w.cancel()
	<-w.done
}
