package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs claimed jobs on a bounded worker pool behind a buffered
// queue, capping concurrent load on the inference backend instead of spawning
// one goroutine per submission.
type Dispatcher struct {
	worker  *Worker
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan string
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.ch = make(chan string, n)
		}
	}
}

// WithJobTimeout bounds one job's full pipeline, inference call included.
func WithJobTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func NewDispatcher(worker *Worker, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		worker:  worker,
		logger:  logger,
		workers: 4,
		timeout: 20 * time.Minute,
		ch:      make(chan string, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func(workerID int) {
				defer d.wg.Done()
				d.logger.Info("dispatcher.worker.started", "worker_id", workerID)

				for jobID := range d.ch {
					ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
					d.worker.Run(ctx, jobID)
					cancel()
				}

				d.logger.Info("dispatcher.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue hands a queued job to the pool. A full queue applies backpressure
// to the submitter rather than dropping work, but the wait stays interruptible:
// the send happens outside the mutex and aborts on ctx expiry or shutdown.
func (d *Dispatcher) Enqueue(ctx context.Context, jobID string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("enqueue job %s: dispatcher is shutting down", jobID)
	}
	d.senders.Add(1)
	d.mu.Unlock()
	defer d.senders.Done()

	select {
	case d.ch <- jobID:
		d.logger.Info("dispatcher.enqueued", "job_id", jobID)
		return nil
	default:
		d.logger.Warn("dispatcher.queue_full", "job_id", jobID)
	}

	select {
	case d.ch <- jobID:
		d.logger.Info("dispatcher.enqueued", "job_id", jobID)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue job %s: %w", jobID, ctx.Err())
	case <-d.done:
		return fmt.Errorf("enqueue job %s: dispatcher is shutting down", jobID)
	}
}

// Shutdown stops intake and drains in-flight work until ctx expires. Blocked
// submitters are released before the queue channel is closed.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.senders.Wait()
	close(d.ch)

	drained := make(chan struct{})
	go func() { defer close(drained); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.logger.Warn("dispatcher.shutdown_interrupted")
	case <-drained:
		d.logger.Info("dispatcher.drained")
	}
}
