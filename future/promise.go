package future

import (
	"context"

	"github.com/lattice-run/minirts/worker"
)

// Promise is the write side of an asynchronous result: exactly one of
// SetValue or SetException must be called on it, exactly once.
// Calling either a second time, on either a Promise or a copy sharing
// its state, panics. Promise is deliberately not safe to use after
// resolving it again from a second goroutine racing the first; only
// one resolution wins the race to flip ready, and the other observes
// a panic, matching the single-writer contract of the design this is
// ported from.
type Promise[T any] struct {
	state *sharedState[T]
}

// NewPromise creates a Promise whose continuations (registered via
// Then on its Future) are dispatched through pool. pool may be nil,
// in which case every continuation that would go through the pool's
// Enqueue runs synchronously instead; SetValue from inside a running
// task still pushes its continuations onto that task's worker.
func NewPromise[T any](pool *worker.ThreadPool) Promise[T] {
	return newPromiseWithPool[T](pool)
}

func newPromiseWithPool[T any](pool *worker.ThreadPool) Promise[T] {
	return Promise[T]{state: newSharedState[T](pool)}
}

// Future returns the read side sharing this Promise's state. It may
// be called any number of times and shared freely.
func (p Promise[T]) Future() Future[T] {
	return Future[T]{state: p.state}
}

// SetValue resolves the Promise with v and schedules any
// already-registered continuations: pushed onto the local deque of
// the worker ctx carries, if any (see worker.FromContext), or run
// inline in the calling goroutine otherwise. Panics if the Promise was
// already resolved.
func (p Promise[T]) SetValue(ctx context.Context, v T) {
	p.state.setValue(ctx, v)
}

// SetException resolves the Promise with err, dispatching any
// already-registered continuations through the backing pool's normal
// Enqueue; a continuation runs inline only when there is no pool or
// the pool refuses it. Panics if the Promise was already resolved, or
// if err is nil.
func (p Promise[T]) SetException(ctx context.Context, err error) {
	p.state.setException(ctx, err)
}
