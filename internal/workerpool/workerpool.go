// Package workerpool provides the bounded parallel fan-out used by the
// Judgment Engine to run dimension scorers and by the Dog Pack to cast votes
// concurrently, without spawning one goroutine per item unconditionally.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool bounds the number of concurrently running tasks submitted via Go.
// A zero-value Pool is invalid; use New.
type Pool struct {
	limit int
}

// New returns a Pool that runs at most limit tasks concurrently. limit <= 0
// is treated as 1 (sequential).
func New(limit int) *Pool {
	if limit <= 0 {
		limit = 1
	}
	return &Pool{limit: limit}
}

// Run executes fns with bounded concurrency, respecting ctx cancellation.
// The first non-nil error cancels the remaining and still-running tasks'
// context and is returned; tasks that had already started are still waited
// on before Run returns, so no task outlives the call.
func (p *Pool) Run(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}
			return fn(gCtx)
		})
	}
	return g.Wait()
}

// Map runs fn over every element of items with bounded concurrency and
// returns results in the same order as items. A failing fn call cancels the
// remaining calls; Map returns the first error encountered.
func Map[T any, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}
			r, err := fn(gCtx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
