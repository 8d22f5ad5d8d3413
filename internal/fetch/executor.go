package fetch

import (
	"context"

	"k8s.io/client-go/util/workqueue"
)

// DefaultWorkers is the pool size resolvers use unless told otherwise.
const DefaultWorkers = 5

// Executor runs n independent pieces of work and waits for them. Run
// returns ctx.Err() when the wait was abandoned; pieces already started
// may still be running then.
type Executor interface {
	Run(ctx context.Context, n int, piece func(i int)) error
}

// NewExecutor runs inline for workers <= 1 and on a bounded pool otherwise.
func NewExecutor(workers int) Executor {
	if workers <= 1 {
		return inlineExecutor{}
	}
	return poolExecutor{workers: workers}
}

type inlineExecutor struct{}

func (inlineExecutor) Run(ctx context.Context, n int, piece func(i int)) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		piece(i)
	}
	return ctx.Err()
}

type poolExecutor struct {
	workers int
}

func (p poolExecutor) Run(ctx context.Context, n int, piece func(i int)) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		workqueue.ParallelizeUntil(ctx, p.workers, n, piece)
	}()
	select {
	case <-done:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
