package future

import (
	"context"

	"github.com/lattice-run/minirts/worker"
)

// Future is the read side of an asynchronous result. It is safe to
// copy and to share across goroutines; all Futures sharing a state
// see the same resolution exactly once.
type Future[T any] struct {
	state *sharedState[T]
}

// Valid reports whether the Future was returned from NewPromise's
// Future method (as opposed to being a zero value).
func (f Future[T]) Valid() bool {
	return f.state != nil
}

// Ready reports whether the Future has already resolved, without
// blocking.
func (f Future[T]) Ready() bool {
	return f.state != nil && f.state.isReady()
}

// Wait blocks until the Future resolves or ctx is done, whichever
// comes first. It does not return the value; use Get for that.
func (f Future[T]) Wait(ctx context.Context) error {
	return f.state.spinWait(ctx)
}

// Get blocks until the Future resolves, then returns its value or the
// error it was rejected with. If ctx is canceled first, Get returns
// the zero value and ctx.Err().
func (f Future[T]) Get(ctx context.Context) (T, error) {
	if err := f.state.spinWait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return f.state.snapshot()
}

// Then registers a continuation that runs once f resolves
// successfully, producing a new Future[R] for its result. If f
// resolved (or resolves) with an error, that error propagates to the
// returned Future without running onValue. If onValue itself panics,
// the panic is captured as the returned Future's error instead of
// crashing the worker running it.
//
// If f is already resolved at call time, the continuation goes through
// the pool's Enqueue (or runs synchronously with ctx when f has no
// pool), whichever worker ctx belongs to.
func Then[T, R any](ctx context.Context, f Future[T], onValue func(T) R) Future[R] {
	p := newPromiseWithPool[R](f.state.pool)

	cont := func(taskCtx context.Context) {
		val, err := f.state.snapshot()
		if err != nil {
			p.SetException(taskCtx, err)
			return
		}
		runProtected(taskCtx, p, func() R { return onValue(val) })
	}

	f.state.addContinuation(ctx, cont)
	return p.Future()
}

// runProtected calls fn and resolves p with its result, converting a
// panic inside fn into a rejection instead of propagating it up
// through the worker's run loop.
func runProtected[R any](ctx context.Context, p Promise[R], fn func() R) {
	defer func() {
		if r := recover(); r != nil {
			p.SetException(ctx, panicToError(r))
		}
	}()
	p.SetValue(ctx, fn())
}

// Subscribe registers onValue/onError callbacks to run once f
// resolves, without producing a chained Future. It is the primitive
// WhenAll and WhenAny are built on, exposed so other combinators can
// be built the same way without paying for an unused intermediate
// Future[Unit] per input.
func (f Future[T]) Subscribe(ctx context.Context, onValue func(T), onError func(error)) {
	cont := func(taskCtx context.Context) {
		val, err := f.state.snapshot()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onValue != nil {
			onValue(val)
		}
	}
	f.state.addContinuation(ctx, cont)
}

// Pool exposes the Future's backing ThreadPool, or nil. Combinators
// use this to schedule their own internal promise onto the same pool
// their inputs belong to.
func (f Future[T]) Pool() *worker.ThreadPool {
	if f.state == nil {
		return nil
	}
	return f.state.pool
}
