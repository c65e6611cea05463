package minirts

import (
	"context"
	"errors"
	"fmt"

	"github.com/lattice-run/minirts/future"
	"github.com/lattice-run/minirts/task"
)

// ErrRejected is the Future's error when the runtime's pool refuses
// to accept a spawned task because it is draining or exited. (Full
// submission queues do not cause it: Enqueue waits for space.)
var ErrRejected = errors.New("minirts: task rejected by thread pool")

// Spawn schedules f to run on r's pool and returns a Future for its
// result. A panic inside f is recovered and surfaces as the Future's
// error rather than crashing the worker goroutine that ran it.
func Spawn[T any](ctx context.Context, r *Runtime, f func() T) future.Future[T] {
	pool := mustPool(r)
	p := future.NewPromise[T](pool)

	t := task.New(func(taskCtx context.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				p.SetException(taskCtx, fmt.Errorf("spawn: task panicked: %v", rec))
			}
		}()
		p.SetValue(taskCtx, f())
	})

	if !pool.Enqueue(t) {
		p.SetException(ctx, ErrRejected)
	}
	return p.Future()
}
