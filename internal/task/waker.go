package task

import "sync/atomic"

// Waker is a ref-counted wake handle, backed by a capacity-1 channel so
// repeated wakes before the waiter polls coalesce into a single pending
// wakeup instead of queuing up.
type Waker struct {
	refs atomic.Int64
	ch   chan struct{}
}

// NewWaker constructs a Waker with one implicit reference, matching the
// caller receiving ownership of the handle it just created.
func NewWaker() *Waker {
	w := &Waker{ch: make(chan struct{}, 1)}
	w.refs.Store(1)

	return w
}

// Ref increments the reference count and returns w for chaining.
func (w *Waker) Ref() *Waker {
	w.refs.Add(1)
	return w
}

// Wake signals the waiter, if one is parked. A Wake that arrives before
// anyone waits leaves a pending notification (channel capacity 1) so the
// next Wait returns immediately: a wake is never lost to a race between
// the waker and the waiter.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// WakeUnref wakes the waiter and drops one reference in a single call,
// the common pattern at the end of a dependency's terminal-state unwind:
// signal this node's waker, then release this node's hold on it. Like
// Wake, it leaves one pending notification, which a single waiter
// receives.
func (w *Waker) WakeUnref() {
	w.Wake()
	w.Unref()
}

// Unref decrements the reference count. Returns the count after the
// decrement; callers that track last-reference teardown can compare
// against zero.
func (w *Waker) Unref() int64 {
	return w.refs.Add(-1)
}

// Wait blocks until Wake is called (or was already pending).
func (w *Waker) Wait() {
	<-w.ch
}

// C exposes the underlying channel for use in a select alongside other
// wake sources (e.g. a context's Done channel or a Future's Done channel).
func (w *Waker) C() <-chan struct{} {
	return w.ch
}
