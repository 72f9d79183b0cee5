// Package async provides a bounded background write queue.
//
// Cache/persistence writes on the read path are dispatched without the
// caller awaiting their completion; the bounded pool gives back-pressure
// (submission blocks when the queue is full) instead of silently dropping
// writes under load.
package async

import (
	"context"
	"log"
	"time"

	"github.com/alitto/pond/v2"
)

// Default configuration values.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// Writer runs persistence tasks on a bounded worker pool and funnels
// their failures into an error channel the owner drains.
type Writer struct {
	pool   pond.Pool
	errs   chan error
	logger *log.Logger
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	Workers   int
	QueueSize int
	Logger    *log.Logger
}

// NewWriter creates a background writer.
func NewWriter(opts WriterOptions) *Writer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Writer{
		pool:   pond.NewPool(opts.Workers, pond.WithQueueSize(opts.QueueSize), pond.WithNonBlocking(false)),
		errs:   make(chan error, opts.QueueSize),
		logger: logger,
	}
}

// Submit enqueues a write task. Blocks while the queue is full.
// Task failures are logged and published on Errors; they never reach the
// submitting caller.
func (w *Writer) Submit(name string, task func(ctx context.Context) error) {
	w.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := task(ctx); err != nil {
			w.logger.Printf("Background write %s failed: %v", name, err)
			select {
			case w.errs <- err:
			default:
				// Error channel full; the failure is already logged.
			}
		}
	})
}

// Errors exposes failures of background writes for observability.
func (w *Writer) Errors() <-chan error {
	return w.errs
}

// QueueDepth reports tasks waiting to run.
func (w *Writer) QueueDepth() int {
	return int(w.pool.WaitingTasks())
}

// Close drains pending writes and releases the pool.
func (w *Writer) Close() {
	w.pool.StopAndWait()
	close(w.errs)
}
