package control

import (
	"context"
	"sync"
)

// Reactor is the single logical thread of control for the whole package.
//
// Work enters through Submit and runs to completion, one item at a time, in
// arrival order. Defer parks work in an idle queue that is drained only when
// no submitted work is pending, which is how the diagnostic dump stays out
// of the way of in-flight signal handling.
//
// Submit and Defer are safe to call from any goroutine; the submitted
// functions themselves always execute on the reactor goroutine.
type Reactor struct {
	work chan func()
	wake chan struct{}

	mu       sync.Mutex
	deferred []func()
}

// NewReactor creates a reactor with a bounded work queue.
func NewReactor(queueSize int) *Reactor {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Reactor{
		work: make(chan func(), queueSize),
		wake: make(chan struct{}, 1),
	}
}

// Submit queues fn for execution in arrival order. Blocks if the queue is
// full, applying backpressure to the producing callback.
func (r *Reactor) Submit(fn func()) {
	r.work <- fn
}

// Defer queues fn for the next idle slot. Deferred work never runs while
// submitted work is pending.
func (r *Reactor) Defer(fn func()) {
	r.mu.Lock()
	r.deferred = append(r.deferred, fn)
	r.mu.Unlock()

	// Nudge a reactor parked at the wait point.
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reactor) popDeferred() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.deferred) == 0 {
		return nil
	}
	fn := r.deferred[0]
	r.deferred = r.deferred[1:]
	return fn
}

// Run processes work until the context is cancelled. It is the only place
// queued functions execute; callers must run exactly one Run per reactor.
func (r *Reactor) Run(ctx context.Context) {
	for {
		// Submitted work always wins over deferred work.
		select {
		case <-ctx.Done():
			return
		case fn := <-r.work:
			fn()
			continue
		default:
		}

		if fn := r.popDeferred(); fn != nil {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			return
		case fn := <-r.work:
			fn()
		case <-r.wake:
		}
	}
}
