// Package minirts is a low-overhead, in-process task runtime: a
// work-stealing thread pool plus a Future/Promise-based continuation
// system built on top of it. Spawn a closure with Spawn, chain its
// result with future.Then, and combine multiple results with WhenAll
// or WhenAny.
package minirts

import (
	"context"
	"sync"
	"time"

	"github.com/lattice-run/minirts/task"
	"github.com/lattice-run/minirts/worker"
)

// Runtime owns one ThreadPool and is the handle every package-level
// Spawn/WhenAll/WhenAny call schedules work through.
type Runtime struct {
	pool *worker.ThreadPool
}

// NewRuntime builds and starts a Runtime from cfg. The returned
// Runtime's pool is already accepting work.
func NewRuntime(ctx context.Context, cfg worker.Config) *Runtime {
	r := &Runtime{pool: worker.New(cfg)}
	r.pool.Start(ctx)
	return r
}

// Pool returns the Runtime's underlying ThreadPool, for callers that
// want Stats, EventLog, or direct Task enqueueing.
func (r *Runtime) Pool() *worker.ThreadPool {
	return r.pool
}

// FinalizeSoft drains the Runtime: no new external submissions are
// accepted, but already-queued and already-stolen work still runs,
// up to timeout (timeout <= 0 waits indefinitely).
func (r *Runtime) FinalizeSoft(timeout time.Duration) {
	r.pool.Shutdown(timeout)
}

// FinalizeHard cancels all outstanding work immediately and waits for
// every worker goroutine to exit.
func (r *Runtime) FinalizeHard() {
	r.pool.ShutdownNow()
}

// Enqueue schedules t to run on r's pool with no result to observe: a
// fire-and-forget submission for callers that don't need a Future,
// the same shape as the host task-runner's bare enqueue(task) entry
// point. It blocks until some worker accepts t, and returns false
// only when the pool itself is draining or exited.
func Enqueue(r *Runtime, t task.Task) bool {
	return mustPool(r).Enqueue(t)
}

var (
	globalMu  sync.RWMutex
	globalRT  *Runtime
)

// Initialize installs the process-wide default Runtime. It panics if
// called twice without an intervening Shutdown, mirroring the
// "initialize once" contract of a process-global scheduler.
func Initialize(ctx context.Context, cfg worker.Config) *Runtime {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRT != nil {
		panic("minirts: Initialize called twice; call Shutdown first")
	}
	globalRT = NewRuntime(ctx, cfg)
	return globalRT
}

// Default returns the process-wide Runtime installed by Initialize.
// It panics if Initialize has not been called, the same way the host
// task-runner's GetGlobalThreadPool panics on an uninitialized pool —
// callers are expected to Initialize once at process start rather
// than guard every call site.
func Default() *Runtime {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalRT == nil {
		panic("minirts: Default called before Initialize")
	}
	return globalRT
}

// Shutdown finalizes (soft, within timeout) and clears the
// process-wide default Runtime so a later Initialize can install a
// fresh one.
func Shutdown(timeout time.Duration) {
	globalMu.Lock()
	rt := globalRT
	globalRT = nil
	globalMu.Unlock()

	if rt == nil {
		return
	}
	rt.FinalizeSoft(timeout)
}

func mustPool(r *Runtime) *worker.ThreadPool {
	if r == nil {
		panic("minirts: nil *Runtime passed to a scheduling call")
	}
	return r.pool
}
