package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lattice-run/minirts/internal/affinity"
	"github.com/lattice-run/minirts/internal/logging"
	"github.com/lattice-run/minirts/internal/obs"
	"github.com/lattice-run/minirts/task"
)

// Config tunes a ThreadPool. Workers, if 0, defaults to
// runtime.NumCPU(). When left nil, Metrics defaults to obs.NilMetrics,
// PanicHandler to obs.DefaultPanicHandler (which prints to stdout),
// and Logger to a NoOpLogger, matching the host task-runner's "every handler is
// optional, defaults are safe" convention.
type Config struct {
	Workers      int
	Logger       logging.Logger
	Metrics      obs.Metrics
	PanicHandler obs.PanicHandler
	EventLogSize int  // 0 disables the diagnostic event log
	PinAffinity  bool // pin each worker goroutine's OS thread to core i
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkerCount()
	}
	if c.Logger == nil {
		c.Logger = logging.NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = obs.NilMetrics{}
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &obs.DefaultPanicHandler{}
	}
	return c
}

// Stats is a point-in-time snapshot of a ThreadPool's load, used by
// both the CLI demo and any periodic metrics export.
type Stats struct {
	Workers      int
	State        State
	QueuedLocal  int
	QueuedSubmit int
	Active       int
}

// ThreadPool owns a fixed set of Workers and round-robins external
// submissions across them, retrying the next worker on a full queue;
// Enqueue keeps the caller waiting until some worker accepts.
type ThreadPool struct {
	cfg     Config
	workers []*Worker
	events  *obs.EventLog

	state atomic.Int32 // worker.State

	cursor atomic.Uint64 // round-robin submission cursor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// New builds a ThreadPool from cfg but does not start its workers;
// call Start to do that.
func New(cfg Config) *ThreadPool {
	cfg = cfg.withDefaults()

	var events *obs.EventLog
	if cfg.EventLogSize > 0 {
		events = obs.NewEventLog(cfg.EventLogSize)
	}

	p := &ThreadPool{
		cfg:    cfg,
		events: events,
	}
	p.state.Store(int32(StateActive))

	p.workers = make([]*Worker, cfg.Workers)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	return p
}

// Start launches one goroutine per worker. Start is idempotent: calls
// after the first are no-ops.
func (p *ThreadPool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		p.ctx = runCtx
		p.cancel = cancel

		for _, w := range p.workers {
			w := w
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				if p.cfg.PinAffinity {
					affinity.PinCurrentGoroutine(w.id)
				}
				w.run(runCtx)
			}()
		}
	})
}

// enqueueRetryBudget bounds how many full round-robin sweeps Enqueue
// makes before backing off with a sleep instead of spinning, mirroring
// the worker run loop's own idleSpinBudget.
const enqueueRetryBudget = 64

// Enqueue submits t for execution, choosing a worker by round-robin.
// A full submission queue is treated as transient resource pressure,
// not rejection: Enqueue keeps sweeping workers, backing off with
// Gosched/sleep between sweeps, until some worker accepts t. It
// returns false only when the pool itself is draining or exited,
// which is the one permanent reason a submission cannot succeed.
func (p *ThreadPool) Enqueue(t task.Task) bool {
	n := len(p.workers)
	sweeps := 0
	for {
		if State(p.state.Load()) != StateActive {
			p.cfg.Metrics.RecordTaskRejected("pool not active")
			if p.events != nil {
				p.events.Record("rejected", "pool not active", -1)
			}
			return false
		}

		start := int(p.cursor.Add(1)) % n
		for i := 0; i < n; i++ {
			w := p.workers[(start+i)%n]
			if w.enqueueExternal(t) {
				return true
			}
		}

		sweeps++
		if sweeps < enqueueRetryBudget {
			runtime.Gosched()
		} else {
			time.Sleep(time.Microsecond * 50)
		}
	}
}

// EnqueueOn submits t directly to worker index i's submission queue,
// bypassing round-robin. It makes a single attempt: it returns false
// if the pool is not active or that worker's queue is full.
func (p *ThreadPool) EnqueueOn(i int, t task.Task) bool {
	if i < 0 || i >= len(p.workers) {
		panic(fmt.Sprintf("worker: EnqueueOn index %d out of range [0,%d)", i, len(p.workers)))
	}
	if State(p.state.Load()) != StateActive {
		return false
	}
	return p.workers[i].enqueueExternal(t)
}

// Workers returns the pool's worker count.
func (p *ThreadPool) Workers() int { return len(p.workers) }

// Shutdown transitions the pool to draining: no further external
// submissions are accepted, but already-queued and already-stolen
// work still runs to completion. It blocks until every worker
// goroutine has exited, or until timeout elapses (timeout <= 0 means
// wait forever).
func (p *ThreadPool) Shutdown(timeout time.Duration) {
	p.stopOnce.Do(func() {
		p.state.Store(int32(StateDraining))
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
	} else {
		select {
		case <-done:
		case <-time.After(timeout):
		}
	}
	p.state.Store(int32(StateExited))
	if p.cancel != nil {
		p.cancel()
	}
}

// ShutdownNow cancels the run context immediately, abandoning any
// queued but not-yet-started work, and blocks until every worker
// goroutine has observed cancellation and returned.
func (p *ThreadPool) ShutdownNow() {
	p.stopOnce.Do(func() {
		p.state.Store(int32(StateDraining))
	})
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.state.Store(int32(StateExited))
}

// State reports the pool's current lifecycle stage.
func (p *ThreadPool) State() State {
	return State(p.state.Load())
}

// Stats returns a snapshot of current queue depths and active worker
// count.
func (p *ThreadPool) Stats() Stats {
	s := Stats{Workers: len(p.workers), State: p.State()}
	for _, w := range p.workers {
		s.QueuedLocal += int(w.local.Size())
		s.QueuedSubmit += w.submit.Len()
		if w.active.Load() {
			s.Active++
		}
	}
	return s
}

// EventLog exposes the pool's diagnostic ring buffer, or nil if
// Config.EventLogSize was 0.
func (p *ThreadPool) EventLog() *obs.EventLog {
	return p.events
}
