// Package obs carries the runtime's observability seams: panic
// containment and metrics collection. Both are adapted from the host
// task-runner's core.PanicHandler / core.Metrics interfaces, narrowed
// to the worker-pool-and-futures domain (no task priority, no runner
// name — workers are identified by integer id).
package obs

import (
	"fmt"
	"time"
)

// PanicHandler is invoked when a Task's closure panics during
// Worker.run. Implementations must be safe to call from any worker
// goroutine concurrently.
type PanicHandler interface {
	// HandlePanic is called with the id of the worker that recovered
	// the panic, the recovered value, and the stack trace captured at
	// the point of recovery.
	HandlePanic(workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler prints panic details to stdout. It is the
// runtime's default so a panicking task is never silently swallowed.
type DefaultPanicHandler struct{}

func (h *DefaultPanicHandler) HandlePanic(workerID int, panicInfo any, stackTrace []byte) {
	fmt.Printf("[worker %d] task panic: %v\n%s", workerID, panicInfo, stackTrace)
}

// Metrics collects runtime execution signals. All methods must be
// non-blocking and cheap: they run on the hot path inside a worker's
// run loop. The nil implementation, NilMetrics, is the default.
type Metrics interface {
	// RecordTaskDuration records how long a single Task.Invoke took on
	// the given worker.
	RecordTaskDuration(workerID int, duration time.Duration)

	// RecordTaskPanic records that a task panicked on the given worker.
	RecordTaskPanic(workerID int, panicInfo any)

	// RecordQueueDepth records a worker's local submission-queue depth,
	// sampled opportunistically (not on every push/pop).
	RecordQueueDepth(workerID int, depth int)

	// RecordSteal records a successful steal of n tasks by thiefID from
	// victimID.
	RecordSteal(thiefID, victimID int, n int)

	// RecordTaskRejected records that Enqueue refused a task, e.g.
	// because the pool had already entered draining or exited state.
	RecordTaskRejected(reason string)
}

// NilMetrics discards everything. It is the zero-cost default.
type NilMetrics struct{}

func (NilMetrics) RecordTaskDuration(workerID int, duration time.Duration) {}
func (NilMetrics) RecordTaskPanic(workerID int, panicInfo any)             {}
func (NilMetrics) RecordQueueDepth(workerID int, depth int)                {}
func (NilMetrics) RecordSteal(thiefID, victimID int, n int)                {}
func (NilMetrics) RecordTaskRejected(reason string)                        {}
