// Package compute provides the executor capability used by the pipeline:
// submit a batch of pure functions over data, receive their results. The
// core is agnostic to whether execution is serial, a local worker pool, or
// a remote scheduler behind the same interface.
package compute

import (
	"context"
	"time"
)

// Task is a pure function over captured data.
type Task func(ctx context.Context) (any, error)

// Result is one task's outcome. Index identifies the task within its batch
// so callers can commit results in completion order.
type Result struct {
	Index int
	Value any
	Err   error
}

// Executor runs batches of tasks.
type Executor interface {
	// Workers reports the executor's parallelism. Callers bound their
	// in-flight batches to this to avoid queueing every session at once.
	Workers() int

	// Submit starts the batch and returns a channel that yields one Result
	// per task in completion order, then closes. A canceled context fails
	// the remaining tasks with ctx.Err().
	Submit(ctx context.Context, tasks []Task) <-chan Result

	// Close releases the executor's resources, waiting at most timeout for
	// in-flight work to drain. Exceeding the wait is reported, not fatal.
	Close(timeout time.Duration) error
}

// Serial runs every task inline on a single goroutine, in order.
type Serial struct{}

// NewSerial creates a serial executor.
func NewSerial() *Serial {
	return &Serial{}
}

func (s *Serial) Workers() int {
	return 1
}

func (s *Serial) Submit(ctx context.Context, tasks []Task) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		for i, task := range tasks {
			if err := ctx.Err(); err != nil {
				out <- Result{Index: i, Err: err}
				continue
			}
			value, err := task(ctx)
			out <- Result{Index: i, Value: value, Err: err}
		}
	}()
	return out
}

func (s *Serial) Close(timeout time.Duration) error {
	return nil
}
