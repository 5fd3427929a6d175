package compute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks on a bounded set of local workers. Individual task errors
// are delivered through their Result; they never cancel sibling tasks.
type Pool struct {
	workers  int
	inflight sync.WaitGroup
}

// NewPool creates a pool with the given worker count (minimum 1).
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) Submit(ctx context.Context, tasks []Task) <-chan Result {
	out := make(chan Result)

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer close(out)

		var g errgroup.Group
		g.SetLimit(p.workers)

		for i, task := range tasks {
			i, task := i, task
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					out <- Result{Index: i, Err: err}
					return nil
				}
				value, err := task(ctx)
				out <- Result{Index: i, Value: value, Err: err}
				return nil
			})
		}
		g.Wait()
	}()

	return out
}

// Close waits for in-flight batches to drain, up to timeout.
func (p *Pool) Close(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("pool did not drain within %s", timeout)
	}
}
