package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lattice-run/minirts/task"
)

func TestPoolRunsEnqueuedTasks(t *testing.T) {
	p := New(Config{Workers: 4})
	p.Start(context.Background())
	defer p.ShutdownNow()

	const n = 10000
	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		// Enqueue itself retries until a worker accepts, so a single
		// call is enough even though queues are bounded.
		if !p.Enqueue(task.New(func(ctx context.Context) {
			ran.Add(1)
			wg.Done()
		})) {
			t.Fatal("expected Enqueue to succeed while the pool is active")
		}
	}

	waitWithTimeout(t, &wg, 10*time.Second)

	if got := ran.Load(); got != n {
		t.Fatalf("expected %d tasks to run, got %d", n, got)
	}
}

func TestPoolCurrentWorkerInsideTask(t *testing.T) {
	p := New(Config{Workers: 2})
	p.Start(context.Background())
	defer p.ShutdownNow()

	done := make(chan bool, 1)
	p.Enqueue(task.New(func(ctx context.Context) {
		w, ok := FromContext(ctx)
		done <- ok && w != nil
	}))

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected FromContext to recover the running worker")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task")
	}
}

func TestPoolShutdownStopsAcceptingWork(t *testing.T) {
	p := New(Config{Workers: 2})
	p.Start(context.Background())

	p.Shutdown(5 * time.Second)

	if p.State() != StateExited {
		t.Fatalf("expected StateExited after Shutdown, got %s", p.State())
	}
	if ok := p.Enqueue(task.New(func(ctx context.Context) {})); ok {
		t.Fatal("expected Enqueue to fail once the pool has exited")
	}
}

func TestPoolCompletesWorkQueuedOnOneWorker(t *testing.T) {
	p := New(Config{Workers: 4})
	p.Start(context.Background())
	defer p.ShutdownNow()

	const n = 2000
	var wg sync.WaitGroup
	wg.Add(n)

	// Dump everything onto worker 0 directly; the other three can only
	// get any of it by stealing from worker 0.
	for i := 0; i < n; i++ {
		for !p.EnqueueOn(0, task.New(func(ctx context.Context) {
			wg.Done()
		})) {
			time.Sleep(time.Microsecond)
		}
	}

	waitWithTimeout(t, &wg, 10*time.Second)
}

func TestPoolStatsReportsQueueDepth(t *testing.T) {
	p := New(Config{Workers: 1})
	// Deliberately not started: tasks should sit in the queue.
	block := make(chan struct{})
	defer close(block)

	for i := 0; i < 5; i++ {
		p.Enqueue(task.New(func(ctx context.Context) {
			<-block
		}))
	}

	stats := p.Stats()
	if stats.Workers != 1 {
		t.Fatalf("expected 1 worker, got %d", stats.Workers)
	}
	if stats.QueuedSubmit+stats.QueuedLocal == 0 {
		t.Fatal("expected queued tasks to be reflected in Stats")
	}
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
