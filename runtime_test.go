package minirts

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-run/minirts/worker"
)

func TestSpawnResolvesFutureWithResult(t *testing.T) {
	rt := NewRuntime(context.Background(), worker.Config{Workers: 4})
	defer rt.FinalizeHard()

	f := Spawn(context.Background(), rt, func() int { return 7 * 6 })

	v, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("want 42, got %d", v)
	}
}

func TestSpawnCapturesPanicAsError(t *testing.T) {
	rt := NewRuntime(context.Background(), worker.Config{Workers: 2})
	defer rt.FinalizeHard()

	f := Spawn(context.Background(), rt, func() int {
		panic("kaboom")
	})

	_, err := f.Get(context.Background())
	if err == nil {
		t.Fatal("expected panic inside Spawn to surface as an error")
	}
}

func TestInitializeDefaultShutdown(t *testing.T) {
	Initialize(context.Background(), worker.Config{Workers: 2})
	defer func() {
		// Ensure a clean slate for other tests even if an assertion fails.
		Shutdown(5 * time.Second)
	}()

	rt := Default()
	f := Spawn(context.Background(), rt, func() string { return "ok" })
	v, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Fatalf("want ok, got %s", v)
	}

	Shutdown(5 * time.Second)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Default to panic once Shutdown clears the global runtime")
		}
	}()
	Default()
}

func TestInitializeTwiceWithoutShutdownPanics(t *testing.T) {
	Initialize(context.Background(), worker.Config{Workers: 1})
	defer Shutdown(time.Second)

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Initialize to panic")
		}
	}()
	Initialize(context.Background(), worker.Config{Workers: 1})
}

func TestFinalizeSoftDrainsQueuedWork(t *testing.T) {
	rt := NewRuntime(context.Background(), worker.Config{Workers: 2})

	results := make([]chan int, 0, 50)
	for i := 0; i < 50; i++ {
		i := i
		f := Spawn(context.Background(), rt, func() int { return i })
		ch := make(chan int, 1)
		go func() {
			v, _ := f.Get(context.Background())
			ch <- v
		}()
		results = append(results, ch)
	}

	rt.FinalizeSoft(5 * time.Second)

	for i, ch := range results {
		select {
		case v := <-ch:
			if v != i {
				t.Fatalf("result %d: want %d, got %d", i, i, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("result %d: timed out", i)
		}
	}
}

