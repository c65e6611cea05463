package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lattice-run/minirts/internal/obs"
	"github.com/lattice-run/minirts/task"
)

type recordingPanicHandler struct {
	mu    sync.Mutex
	count int
}

func (h *recordingPanicHandler) HandlePanic(workerID int, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
}

func TestWorkerPanicIsContainedAndReported(t *testing.T) {
	handler := &recordingPanicHandler{}
	p := New(Config{Workers: 1, PanicHandler: handler})
	p.Start(context.Background())
	defer p.ShutdownNow()

	var wg sync.WaitGroup
	wg.Add(2)

	p.Enqueue(task.New(func(ctx context.Context) {
		defer wg.Done()
		panic("boom")
	}))
	p.Enqueue(task.New(func(ctx context.Context) {
		defer wg.Done()
	}))

	waitWithTimeout(t, &wg, 5*time.Second)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.count != 1 {
		t.Fatalf("expected exactly 1 panic recorded, got %d", handler.count)
	}
}

func TestWorkerEventLogRecordsSteals(t *testing.T) {
	p := New(Config{Workers: 4, EventLogSize: 64})
	p.Start(context.Background())
	defer p.ShutdownNow()

	const n = 5000
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		for !p.EnqueueOn(0, task.New(func(ctx context.Context) {
			wg.Done()
		})) {
			time.Sleep(time.Microsecond)
		}
	}
	waitWithTimeout(t, &wg, 10*time.Second)

	log := p.EventLog()
	if log == nil {
		t.Fatal("expected EventLog to be non-nil when EventLogSize > 0")
	}

	var sawSteal bool
	for _, e := range log.Snapshot() {
		if e.Kind == "steal" {
			sawSteal = true
			break
		}
	}
	if !sawSteal {
		t.Fatal("expected at least one steal event with all work dumped on worker 0")
	}
}

var _ obs.PanicHandler = (*recordingPanicHandler)(nil)
