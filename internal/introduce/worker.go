package introduce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soda92/phis-introducing-med/pkg/logging"
)

const (
	defaultWorkerCount = 1
	defaultDequeueWait = 2 * time.Second
)

// Runner executes the introduction flow for one patient.
type Runner interface {
	Run(ctx context.Context, patient Patient) (*Report, error)
}

type workerConfig struct {
	workers int
	wait    time.Duration
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets how many consumer goroutines run. More than one only
// makes sense when each has its own browser session.
func WithWorkerCount(n int) WorkerOption {
	return func(c *workerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithDequeueWait sets the per-poll blocking wait.
func WithDequeueWait(d time.Duration) WorkerOption {
	return func(c *workerConfig) {
		if d > 0 {
			c.wait = d
		}
	}
}

// Worker consumes patient tasks from the queue and runs the introduction
// flow for each.
type Worker struct {
	runner Runner
	queue  TaskQueue
	logger *logging.Logger
	cfg    workerConfig
	wg     sync.WaitGroup
}

// NewWorker creates a worker over runner and queue.
func NewWorker(runner Runner, queue TaskQueue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	cfg := workerConfig{
		workers: defaultWorkerCount,
		wait:    defaultDequeueWait,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		runner: runner,
		queue:  queue,
		logger: logger.Component("worker"),
		cfg:    cfg,
	}
}

// Start launches the consumer goroutines. They exit when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
}

// Wait blocks until all consumer goroutines have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.queue.Dequeue(ctx, w.cfg.wait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Error("dequeue failed", "error", err)
			continue
		}
		if task == nil {
			continue
		}

		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task *Task) {
	log := w.logger.With("task_id", task.ID, "patient", task.Patient.ID)
	log.Info("patient run starting")

	report, err := w.runner.Run(ctx, task.Patient)
	if err != nil {
		log.Error("patient run failed", "error", err)
		return
	}
	if !report.Continue {
		log.Warn("patient run aborted by host dialog", "outcome", report.Outcome)
		return
	}
	log.Info("patient run finished", "outcome", report.Outcome, "selected", len(report.Selected))
}
