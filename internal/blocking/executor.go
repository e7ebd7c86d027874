// Package blocking runs filesystem-bound work on a bounded number of goroutines.
package blocking

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is used when a non-positive worker count is configured
const DefaultWorkers = 16

// Executor bounds how many blocking calls run at once
type Executor struct {
	sem     *semaphore.Weighted
	workers int
}

// NewExecutor creates an Executor running at most workers calls concurrently
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Executor{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
}

// Workers returns the concurrency limit
func (e *Executor) Workers() int {
	return e.workers
}

// Do waits for a free slot and runs fn in the calling goroutine. Waiting is
// abandoned when ctx ends; a started fn always runs to completion.
func (e *Executor) Do(ctx context.Context, fn func() error) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for a worker: %w", err)
	}
	defer e.sem.Release(1)

	return fn()
}

// Call is Do for functions returning a value
func Call[T any](ctx context.Context, e *Executor, fn func() (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
