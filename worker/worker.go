// Package worker implements the goroutine-backed worker that runs
// Tasks, and the ThreadPool that owns a fixed set of them. Each
// Worker pairs a lock-free work-stealing deque (its own backlog, also
// raided by idle peers) with a mutex-guarded submission queue (the
// entry point for producers outside the pool).
package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lattice-run/minirts/internal/logging"
	"github.com/lattice-run/minirts/internal/obs"
	"github.com/lattice-run/minirts/internal/queue"
	"github.com/lattice-run/minirts/task"
)

// State is the lifecycle stage of a worker pool, mirrored by every
// worker goroutine in it.
type State int32

const (
	// StateActive accepts new work and runs the steal loop normally.
	StateActive State = iota
	// StateDraining refuses new external submissions but keeps
	// running until every worker's queues (local and stolen-from) go
	// dry, so already-spawned continuations still get to run.
	StateDraining
	// StateExited is set once shutdown has finished: after a soft
	// shutdown's wait has completed or timed out (the run context is
	// then cancelled, so workers stop picking up tasks), or after a hard
	// shutdown's workers have all returned.
	StateExited
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// idleSpinBudget bounds how many consecutive empty steal attempts a
// worker makes before yielding the OS thread; kept small so a worker
// that just ran dry notices fresh submissions quickly without pegging
// a core. Matches the "busy-wait with interleaved Gosched" approach
// future.Future.Wait also uses, rather than parking on a condvar.
const idleSpinBudget = 64

type currentWorkerKey struct{}

// WithCurrent returns a context carrying w as "the worker currently
// running this task". Task closures recover it with FromContext; this
// is this runtime's stand-in for the thread-local "current worker"
// pointer a non-Go implementation would keep, threaded the same way
// the host task-runner threads its current-runner handle through
// context.
func WithCurrent(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, currentWorkerKey{}, w)
}

// FromContext recovers the worker that is running the task holding
// ctx, if any. The second return is false when called from outside a
// running task (e.g. from the goroutine that built the pool).
func FromContext(ctx context.Context) (*Worker, bool) {
	w, ok := ctx.Value(currentWorkerKey{}).(*Worker)
	return w, ok
}

// Worker owns one goroutine, one work-stealing deque, and one
// submission queue. ID is stable for the worker's lifetime and is
// used both for round-robin dispatch and for affinity pinning.
type Worker struct {
	id    int
	pool  *ThreadPool
	local *queue.Deque[task.Task]

	submitMu sync.Mutex
	submit   *queue.SPSC[task.Task]

	log     logging.Logger
	metrics obs.Metrics
	panics  obs.PanicHandler
	events  *obs.EventLog

	state   *atomic.Int32 // shared with the owning pool
	active  atomic.Bool   // true while inside Task.Invoke
	exited  chan struct{}
}

func newWorker(id int, p *ThreadPool) *Worker {
	return &Worker{
		id:      id,
		pool:    p,
		local:   queue.NewDeque[task.Task](256),
		submit:  queue.NewSPSC[task.Task](1024),
		log:     p.cfg.Logger,
		metrics: p.cfg.Metrics,
		panics:  p.cfg.PanicHandler,
		events:  p.events,
		state:   &p.state,
		exited:  make(chan struct{}),
	}
}

// ID returns the worker's stable index within its pool, in [0, N).
func (w *Worker) ID() int { return w.id }

// enqueueExternal is the multi-producer submission path: any goroutine
// outside the pool (or a task running on a different worker) may call
// it concurrently. The mutex serializes producers; the SPSC's
// lock-free consumer side is still read only by w's own run loop.
func (w *Worker) enqueueExternal(t task.Task) bool {
	w.submitMu.Lock()
	ok := w.submit.Enqueue(t)
	w.submitMu.Unlock()
	return ok
}

// EnqueueLocal is the single-producer fast path: valid only when
// called from the goroutine currently running on w (i.e. a task
// spawning more work onto the worker it happens to be running on, or
// a continuation resolving on the worker that's resolving its
// future). It bypasses the submission queue entirely and pushes
// straight onto the work-stealing deque, where idle peers can still
// steal it if w itself stays busy.
func (w *Worker) EnqueueLocal(t task.Task) {
	w.local.Push(t)
}

func (w *Worker) run(ctx context.Context) {
	w.log.Debug("worker starting", logging.F("worker", w.id))
	defer func() {
		w.log.Debug("worker exiting", logging.F("worker", w.id))
		close(w.exited)
	}()
	ctx = WithCurrent(ctx, w)

	idle := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t, ok := w.local.Pop()
		if !ok {
			t, ok = w.drainSubmissions()
		}
		if !ok {
			t, ok = w.steal()
		}

		if !ok {
			if State(w.state.Load()) != StateActive && w.queuesEmpty() {
				return
			}
			idle++
			if idle < idleSpinBudget {
				runtime.Gosched()
			} else {
				time.Sleep(time.Microsecond * 50)
			}
			continue
		}

		idle = 0
		w.invoke(ctx, t)
	}
}

// drainSubmissions moves one task from the submission queue onto the
// local deque and returns it directly, avoiding a redundant push/pop
// round trip on the common case of a single pending item.
func (w *Worker) drainSubmissions() (task.Task, bool) {
	t, ok := w.submit.Dequeue()
	if !ok {
		return task.Task{}, false
	}
	// Opportunistically pull any further backlog onto the deque so
	// idle peers can steal it instead of it sitting invisible in the
	// SPSC ring.
	for {
		more, ok := w.submit.Dequeue()
		if !ok {
			break
		}
		w.local.Push(more)
	}
	return t, true
}

func (w *Worker) steal() (task.Task, bool) {
	peers := w.pool.workers
	n := len(peers)
	if n <= 1 {
		return task.Task{}, false
	}
	start := w.id
	for i := 1; i < n; i++ {
		victim := peers[(start+i)%n]
		if victim == w {
			continue
		}
		size := victim.local.Size()
		if size == 0 {
			continue
		}
		half := int(size / 2)
		if half < 1 {
			half = 1
		}
		stolen := victim.local.StealN(half)
		if len(stolen) == 0 {
			continue
		}
		w.metrics.RecordSteal(w.id, victim.id, len(stolen))
		if w.events != nil {
			w.events.Record("steal", "", w.id)
		}
		first := stolen[0]
		for _, extra := range stolen[1:] {
			w.local.Push(extra)
		}
		return first, true
	}
	return task.Task{}, false
}

func (w *Worker) queuesEmpty() bool {
	return w.local.IsEmpty() && w.submit.Len() == 0
}

func (w *Worker) invoke(ctx context.Context, t task.Task) {
	w.active.Store(true)
	defer w.active.Store(false)

	start := time.Now()
	defer func() {
		w.metrics.RecordTaskDuration(w.id, time.Since(start))
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			w.metrics.RecordTaskPanic(w.id, r)
			if w.events != nil {
				w.events.Record("panic", "", w.id)
			}
			w.log.Warn("task panicked", logging.F("worker", w.id), logging.F("panic", r))
			w.panics.HandlePanic(w.id, r, stack[:n])
		}
		t.Destroy()
	}()

	t.Invoke(ctx)
}
