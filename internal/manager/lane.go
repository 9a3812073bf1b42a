package manager

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// lane bounds the number of native calls running at once. Native calls are
// not preemptible: ctx bounds the wait for a worker, never the call itself.
type lane struct {
	sem     *semaphore.Weighted
	workers int
}

func newLane(workers int) *lane {
	return &lane{sem: semaphore.NewWeighted(int64(workers)), workers: workers}
}

// Go starts fn on a worker and returns without waiting for it.
func (l *lane) Go(ctx context.Context, fn func()) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer l.sem.Release(1)
		fn()
	}()
	return nil
}

// Do runs fn on a worker and waits for its result.
func (l *lane) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := l.Go(ctx, func() { done <- fn() }); err != nil {
		return err
	}
	return <-done
}
