// Package future implements Future[T]/Promise[T], the asynchronous
// result channel that Spawn, WhenAll and WhenAny are built from. A
// Future and its Promise share one sharedState[T]: a mutex-guarded
// ready flag, a value-or-error slot, and a FIFO list of continuations
// waiting on it.
//
// Resolution follows the same inline-vs-global policy the scheduler
// this design is ported from uses: SetValue first tries to enqueue
// waiting continuations onto the worker that is currently resolving
// the promise (cheap, cache-friendly), falling back to running them
// inline when there is no such worker (e.g. the promise is resolved
// from outside the pool). SetException dispatches through the pool's
// normal round-robin Enqueue, so that a panic unwinding an exception
// chain doesn't also run arbitrary continuation code on the stack
// that's unwinding; it runs a continuation inline only when there is
// no pool or the pool refuses the task. A Then or
// Subscribe registered against a future that has already resolved
// follows the SetException rule regardless of whether the resolution
// was a value or an error: it always goes through the pool's Enqueue
// rather than running synchronously on the registering goroutine,
// since that goroutine is not the one that resolved the promise.
package future

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/lattice-run/minirts/task"
	"github.com/lattice-run/minirts/worker"
)

// Unit stands in for C++'s void specialization: Future[Unit] is the
// result type of work done purely for its side effects.
type Unit = struct{}

// continuation is a type-erased callback scheduled once the
// sharedState it's attached to resolves. It receives the context of
// whichever task happened to be running when it got dispatched, which
// may or may not be the task that originally registered it.
type continuation func(ctx context.Context)

type sharedState[T any] struct {
	mu    sync.Mutex
	ready bool
	val   T
	err   error
	conts []continuation

	pool *worker.ThreadPool
}

func newSharedState[T any](pool *worker.ThreadPool) *sharedState[T] {
	return &sharedState[T]{pool: pool}
}

// snapshot returns the resolved value/error. It must only be called
// once ready is known true.
func (s *sharedState[T]) snapshot() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val, s.err
}

func (s *sharedState[T]) isReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// addContinuation registers c to run once the state resolves. If the
// state is already resolved, c is always dispatched through the
// pool's global Enqueue rather than run inline on the calling
// goroutine: a caller registering Then/Subscribe against an
// already-ready future is not "the worker resolving the promise", so
// the cheap local-enqueue-or-inline shortcut SetValue's own
// continuations get does not apply here. registered is false.
func (s *sharedState[T]) addContinuation(ctx context.Context, c continuation) (registered bool) {
	s.mu.Lock()
	if !s.ready {
		s.conts = append(s.conts, c)
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	s.dispatch(ctx, c, false)
	return false
}

func (s *sharedState[T]) setValue(ctx context.Context, v T) {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		panic("future: SetValue called on an already-resolved promise")
	}
	s.val = v
	s.ready = true
	conts := s.conts
	s.conts = nil
	s.mu.Unlock()

	for _, c := range conts {
		s.dispatch(ctx, c, true)
	}
}

func (s *sharedState[T]) setException(ctx context.Context, err error) {
	if err == nil {
		panic("future: SetException called with a nil error")
	}
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		panic("future: SetException called on an already-resolved promise")
	}
	s.err = err
	s.ready = true
	conts := s.conts
	s.conts = nil
	s.mu.Unlock()

	for _, c := range conts {
		s.dispatch(ctx, c, false)
	}
}

// dispatch runs c according to the resolution policy: value
// resolution (allowInline true) tries a cheap local enqueue onto the
// worker currently running ctx's task and otherwise runs c in the
// calling goroutine; exception resolution (allowInline false) goes
// through the pool's normal Enqueue, running c synchronously only when
// there is no pool or Enqueue refuses it.
func (s *sharedState[T]) dispatch(ctx context.Context, c continuation, allowInline bool) {
	wrapped := task.New(func(taskCtx context.Context) { c(taskCtx) })

	if allowInline {
		if w, ok := worker.FromContext(ctx); ok {
			w.EnqueueLocal(wrapped)
			return
		}
		c(ctx)
		return
	}

	if s.pool == nil {
		// No pool reference (e.g. a Promise built without one): fall
		// back to running synchronously rather than dropping the
		// continuation.
		c(ctx)
		return
	}
	if !s.pool.Enqueue(wrapped) {
		// Pool saturated or shutting down: still must not lose the
		// continuation, so run it synchronously instead of dropping it.
		c(ctx)
	}
}

// spinWait busy-waits for ready to become true, yielding the
// goroutine's time slice between checks rather than spinning a raw
// CPU loop, and honoring ctx cancellation.
func (s *sharedState[T]) spinWait(ctx context.Context) error {
	const checksBeforeSleep = 256
	spins := 0
	for !s.isReady() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		spins++
		if spins < checksBeforeSleep {
			runtime.Gosched()
		} else {
			runtime.Gosched()
			spins = 0
		}
	}
	return nil
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("future: continuation panicked: %w", err)
	}
	return fmt.Errorf("future: continuation panicked: %v", r)
}
