// Package task defines Task, the type-erased, single-shot unit of work
// scheduled by the runtime's worker pool.
package task

import "context"

// Task is a type-erased, invocable-once unit of work.
//
// A Task is either empty (zero value, fn == nil) or armed (fn != nil). An
// armed Task must be invoked exactly once via Invoke, and then returned to
// empty via Destroy before the handle is reused or dropped. Go closures
// already erase the concrete callable type, so Task carries a single
// function value rather than the separate invoke/destroy function
// pointers a non-garbage-collected implementation would need; the
// armed/empty lifecycle invariant is unchanged.
//
// Invoke receives a context.Context carrying the identity of the worker
// currently running it (see worker.WithCurrent / worker.FromContext).
// That is this runtime's substitute for thread-local storage: a task's
// closure can recover "which worker am I running on" from ctx the same
// way the host task-runner's tasks recover their runner via
// GetCurrentTaskRunner, without any goroutine-local bookkeeping.
type Task struct {
	fn func(ctx context.Context)
}

// New arms a Task with the given callable. f must not be nil.
func New(f func(ctx context.Context)) Task {
	if f == nil {
		panic("task: New called with a nil callable")
	}
	return Task{fn: f}
}

// Armed reports whether the Task holds a callable that has not yet been
// destroyed.
func (t Task) Armed() bool {
	return t.fn != nil
}

// Invoke runs the armed callable with ctx. Invoke panics if the Task is
// empty. The caller is responsible for calling Destroy exactly once
// afterward.
func (t Task) Invoke(ctx context.Context) {
	if t.fn == nil {
		panic("task: Invoke called on an empty Task")
	}
	t.fn(ctx)
}

// Destroy releases the callable, returning the Task to empty. Destroy on
// an already-empty Task is a no-op so callers at shutdown boundaries don't
// need to track whether a given Task was already cleaned up.
func (t *Task) Destroy() {
	t.fn = nil
}
