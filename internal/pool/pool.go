// Package pool provides a bounded-concurrency fan-out executor whose results
// come back aligned with its inputs.
package pool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TaskError identifies which input item failed during a dispatch.
type TaskError struct {
	// Index is the item's position in the input slice.
	Index int
	// Err is the failure returned by the task function.
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("pool: task %d: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Pool bounds how many tasks a dispatch runs at once.
//
// A Pool carries no goroutines of its own; each dispatch spins up workers and
// tears them down before returning. Reconfiguring the width applies to
// subsequent dispatches only — callers must not call SetMaxWorkers while a
// dispatch is in flight.
type Pool struct {
	maxWorkers int
}

// New returns a Pool running at most maxWorkers tasks concurrently.
// Widths below 1 are clamped to 1.
func New(maxWorkers int) *Pool {
	p := &Pool{}
	p.SetMaxWorkers(maxWorkers)
	return p
}

// MaxWorkers returns the dispatch width.
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// SetMaxWorkers changes the dispatch width for subsequent dispatches.
// Widths below 1 are clamped to 1.
func (p *Pool) SetMaxWorkers(n int) {
	if n < 1 {
		n = 1
	}
	p.maxWorkers = n
}

// Map runs fn over every item with bounded concurrency and returns the
// results in input order: results[i] is fn's output for items[i].
//
// The first failure cancels the shared context, pending items stop being
// scheduled, and already-scheduled tasks are skipped once the cancellation
// is visible. The returned error wraps the failure in a TaskError carrying
// the failing item's index.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.MaxWorkers())

	for i, item := range items {
		i, item := i, item // per-iteration copies: go.mod targets go1.21, pre-loopvar semantics
		if gctx.Err() != nil {
			break // a task already failed; stop scheduling
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return &TaskError{Index: i, Err: err} // cancels gctx for the rest
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

// MapUnordered is Map for callers that accept results in completion order.
// It trades the positional guarantee for not having to pre-size anything:
// results from failed or skipped items simply never appear.
func MapUnordered[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	var (
		mu      sync.Mutex
		results []R
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.MaxWorkers())

	for i, item := range items {
		i, item := i, item // per-iteration copies: go.mod targets go1.21, pre-loopvar semantics
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return &TaskError{Index: i, Err: err}
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
