package handshake

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool runs handshake attempts across a fixed number of worker goroutines,
// draining a shared attempt channel -- the same errgroup-over-task-channel
// shape used elsewhere in the ecosystem for bounded fan-out, sized here to
// ExecutorPoolSize.
type Pool struct {
	Runner *Runner
	Size   int
}

func NewPool(runner *Runner) *Pool {
	return &Pool{Runner: runner, Size: ExecutorPoolSize}
}

// Run drains attempts until it is closed or ctx is done, running up to
// Size handshakes concurrently. A single attempt's error is logged and does
// not stop the pool; Run itself returns only on context cancellation or
// channel closure.
func (p *Pool) Run(ctx context.Context, attempts <-chan Attempt) error {
	size := p.Size
	if size <= 0 {
		size = ExecutorPoolSize
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case a, ok := <-attempts:
					if !ok {
						return nil
					}
					if err := p.Runner.Run(ctx, a); err != nil {
						log.Warnf("handshake attempt %s/%s failed: %v", a.LocalOrderID, a.RemoteOrderID, err)
					}
				}
			}
		})
	}
	return g.Wait()
}
