package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lattice-run/minirts/task"
	"github.com/lattice-run/minirts/worker"
)

func TestPromiseSetValueThenGet(t *testing.T) {
	p := NewPromise[int](nil)
	f := p.Future()

	p.SetValue(context.Background(), 42)

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestPromiseSetValueTwicePanics(t *testing.T) {
	p := NewPromise[int](nil)
	p.SetValue(context.Background(), 1)

	require.Panics(t, func() {
		p.SetValue(context.Background(), 2)
	})
}

func TestPromiseSetExceptionPropagatesToGet(t *testing.T) {
	p := NewPromise[int](nil)
	f := p.Future()
	boom := errors.New("boom")

	p.SetException(context.Background(), boom)

	_, err := f.Get(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestFutureGetBlocksUntilResolved(t *testing.T) {
	p := NewPromise[string](nil)
	f := p.Future()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.SetValue(context.Background(), "done")
	}()

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestFutureGetRespectsContextCancellation(t *testing.T) {
	p := NewPromise[int](nil)
	f := p.Future()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)
	require.Error(t, err)
}

func TestThenChainsOnValue(t *testing.T) {
	p := NewPromise[int](nil)
	f := p.Future()

	doubled := Then(context.Background(), f, func(v int) int { return v * 2 })

	p.SetValue(context.Background(), 21)

	v, err := doubled.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestThenSkipsOnValueWhenExceptionSet(t *testing.T) {
	p := NewPromise[int](nil)
	f := p.Future()

	called := false
	next := Then(context.Background(), f, func(v int) int {
		called = true
		return v
	})

	boom := errors.New("boom")
	p.SetException(context.Background(), boom)

	_, err := next.Get(context.Background())
	require.Error(t, err)
	require.False(t, called, "onValue must not run when the input resolved with an error")
}

func TestThenRegisteredAfterResolution(t *testing.T) {
	p := NewPromise[int](nil)
	f := p.Future()
	p.SetValue(context.Background(), 10)

	next := Then(context.Background(), f, func(v int) int { return v + 1 })

	v, err := next.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 11, v)
}

func TestThenCapturesOnValuePanicAsError(t *testing.T) {
	p := NewPromise[int](nil)
	f := p.Future()

	next := Then(context.Background(), f, func(v int) int {
		panic("kaboom")
	})

	p.SetValue(context.Background(), 1)

	_, err := next.Get(context.Background())
	require.Error(t, err)
}

func TestPromiseWithPoolDispatchesContinuationOnWorker(t *testing.T) {
	pool := worker.New(worker.Config{Workers: 2})
	pool.Start(context.Background())
	defer pool.ShutdownNow()

	p := NewPromise[int](pool)
	f := p.Future()

	result := make(chan int, 1)
	next := Then(context.Background(), f, func(v int) int { return v * 2 })
	go func() {
		v, err := next.Get(context.Background())
		if err != nil {
			t.Error(err)
		}
		result <- v
	}()

	// Resolve from inside a running task so SetValue observes a worker
	// in ctx and enqueues the continuation locally instead of inline.
	pool.Enqueue(task.New(func(taskCtx context.Context) {
		p.SetValue(taskCtx, 21)
	}))

	select {
	case v := <-result:
		require.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for continuation to run")
	}
}
