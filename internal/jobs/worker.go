package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Worker pulls tasks from a Source and runs the registered handler for each.
type Worker struct {
	Source   Source
	Handlers map[string]Handler
	Limiter  *rate.Limiter
	Logger   *zap.Logger
	Interval time.Duration
	Batch    int
}

// NewWorker builds a worker limited to r jobs per second with the given burst.
func NewWorker(src Source, r float64, burst int, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if r > 0 {
		limit = rate.Limit(r)
	}
	return &Worker{
		Source:   src,
		Handlers: map[string]Handler{},
		Limiter:  rate.NewLimiter(limit, burst),
		Logger:   logger,
		Interval: time.Second,
		Batch:    20,
	}
}

// Handle registers h for jobs named name.
func (w *Worker) Handle(name string, h Handler) {
	if w.Handlers == nil {
		w.Handlers = map[string]Handler{}
	}
	w.Handlers[name] = h
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := w.Drain(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger().Warn("job poll failed", zap.Error(err))
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain runs one batch and reports how many tasks were taken.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	tasks, err := w.Source.Next(ctx, w.batch())
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		if w.Limiter != nil {
			if err := w.Limiter.Wait(ctx); err != nil {
				return 0, err
			}
		}
		runErr := w.run(ctx, t)
		if runErr != nil {
			w.logger().Warn("job failed",
				zap.String("job", t.Name), zap.String("job_id", t.ID), zap.Int("attempts", t.Attempts+1), zap.Error(runErr))
		} else {
			w.logger().Debug("job done", zap.String("job", t.Name), zap.String("job_id", t.ID))
		}
		if err := w.Source.Finish(ctx, t, runErr); err != nil {
			return len(tasks), fmt.Errorf("finish job %s: %w", t.ID, err)
		}
	}
	return len(tasks), nil
}

func (w *Worker) run(ctx context.Context, t Task) (err error) {
	h, ok := w.Handlers[t.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, t.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", t.Name, r)
		}
	}()
	return h(ctx, t.Payload)
}

func (w *Worker) batch() int {
	if w.Batch <= 0 {
		return 20
	}
	return w.Batch
}

func (w *Worker) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}
