// Package task supplies the minimal future/waker abstraction the engine
// consumes for asynchrony: ready/pending poll semantics plus wake-up via
// a Waker handle, standing in for a full cooperative-fiber scheduler.
// This package is the concrete collaborator this repository runs on,
// built the idiomatic Go way: a goroutine per task, which is itself a
// cooperative unit multiplexed over Go's own worker-pool scheduler, with
// a buffered channel as the Waker.
package task

import (
	"context"
	"sync"
)

// Future is a single-assignment result cell for a value of type T.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewFuture constructs an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve completes the future successfully. Only the first call (of
// Resolve or Reject) has effect.
func (f *Future[T]) Resolve(v T) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

// Reject completes the future with an error. Only the first call (of
// Resolve or Reject) has effect.
func (f *Future[T]) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Poll returns (value, ready, err) without blocking: the ready/pending
// semantics a caller needs to check a task without parking on it.
func (f *Future[T]) Poll() (T, bool, error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the future resolves, usable directly
// in a select alongside other wake sources (e.g. a Waker's channel).
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Spawn runs fn on its own goroutine and returns a Future for its result.
// The goroutine is this repository's cooperative task on the worker
// pool: Go's runtime scheduler already multiplexes goroutines over a
// bounded set of OS threads, so a bespoke second scheduler on top would
// only duplicate a platform collaborator Go already provides.
func Spawn[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()

	go func() {
		v, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}

		f.Resolve(v)
	}()

	return f
}
