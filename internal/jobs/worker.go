// Package jobs drains the durable index queue in the background.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultPollInterval = 5 * time.Second

// JobProcessor handles one batch of queued work per call.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls its processor once on start and then on every tick, so jobs
// queued while the service was down are picked up without waiting a full
// interval.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	logger    *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewWorker(processor JobProcessor, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Worker{
		processor: processor,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("index worker started", zap.Duration("poll_interval", w.interval))

	w.runBatch(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("index worker stopped", zap.NamedError("cause", ctx.Err()))
			return
		case <-w.stop:
			w.logger.Info("index worker stopped")
			return
		case <-ticker.C:
			w.runBatch(ctx)
		}
	}
}

func (w *Worker) runBatch(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("index batch failed", zap.Error(err))
	}
}

// Stop ends the loop after the batch in flight. Start must have been called.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
