package minirts

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lattice-run/minirts/future"
)

// WhenAll returns a Future that resolves once every Future in inputs
// has resolved successfully, with a slice of their results in input
// order. If any input resolves with an error, WhenAll resolves with
// the first such error to arrive and the rest are ignored (later
// successes or failures among the remaining inputs are observed but
// discarded once the combinator has already settled). An empty inputs
// slice resolves immediately with an empty, non-nil slice.
func WhenAll[T any](ctx context.Context, r *Runtime, inputs []future.Future[T]) future.Future[[]T] {
	pool := mustPool(r)
	p := future.NewPromise[[]T](pool)

	n := len(inputs)
	if n == 0 {
		p.SetValue(ctx, []T{})
		return p.Future()
	}

	results := make([]T, n)
	var mu sync.Mutex
	var remaining int64 = int64(n)
	var settled atomic.Bool

	for i, f := range inputs {
		i := i
		f.Subscribe(ctx,
			func(v T) {
				mu.Lock()
				results[i] = v
				mu.Unlock()
				if atomic.AddInt64(&remaining, -1) == 0 {
					if settled.CompareAndSwap(false, true) {
						p.SetValue(ctx, results)
					}
				}
			},
			func(err error) {
				if settled.CompareAndSwap(false, true) {
					p.SetException(ctx, err)
				}
			},
		)
	}

	return p.Future()
}

// WhenAll2 combines two differently-typed Futures, Go's answer to the
// variadic-template when_all the fixed-arity overloads here are
// ported from: Go generics can't express an arbitrary-arity
// heterogeneous tuple, so the common small arities are spelled out
// explicitly instead.
func WhenAll2[A, B any](ctx context.Context, r *Runtime, fa future.Future[A], fb future.Future[B]) future.Future[Pair[A, B]] {
	pool := mustPool(r)
	p := future.NewPromise[Pair[A, B]](pool)

	var mu sync.Mutex
	var result Pair[A, B]
	var remaining int64 = 2
	var settled atomic.Bool

	fa.Subscribe(ctx,
		func(v A) {
			mu.Lock()
			result.A = v
			mu.Unlock()
			if atomic.AddInt64(&remaining, -1) == 0 && settled.CompareAndSwap(false, true) {
				p.SetValue(ctx, result)
			}
		},
		func(err error) {
			if settled.CompareAndSwap(false, true) {
				p.SetException(ctx, err)
			}
		},
	)
	fb.Subscribe(ctx,
		func(v B) {
			mu.Lock()
			result.B = v
			mu.Unlock()
			if atomic.AddInt64(&remaining, -1) == 0 && settled.CompareAndSwap(false, true) {
				p.SetValue(ctx, result)
			}
		},
		func(err error) {
			if settled.CompareAndSwap(false, true) {
				p.SetException(ctx, err)
			}
		},
	)

	return p.Future()
}

// WhenAll3 is WhenAll2 extended to three differently-typed Futures.
func WhenAll3[A, B, C any](ctx context.Context, r *Runtime, fa future.Future[A], fb future.Future[B], fc future.Future[C]) future.Future[Triple[A, B, C]] {
	pool := mustPool(r)
	p := future.NewPromise[Triple[A, B, C]](pool)

	var mu sync.Mutex
	var result Triple[A, B, C]
	var remaining int64 = 3
	var settled atomic.Bool

	onErr := func(err error) {
		if settled.CompareAndSwap(false, true) {
			p.SetException(ctx, err)
		}
	}
	complete := func() {
		if atomic.AddInt64(&remaining, -1) == 0 && settled.CompareAndSwap(false, true) {
			p.SetValue(ctx, result)
		}
	}

	fa.Subscribe(ctx, func(v A) { mu.Lock(); result.A = v; mu.Unlock(); complete() }, onErr)
	fb.Subscribe(ctx, func(v B) { mu.Lock(); result.B = v; mu.Unlock(); complete() }, onErr)
	fc.Subscribe(ctx, func(v C) { mu.Lock(); result.C = v; mu.Unlock(); complete() }, onErr)

	return p.Future()
}

// Pair is the result of WhenAll2.
type Pair[A, B any] struct {
	A A
	B B
}

// Triple is the result of WhenAll3.
type Triple[A, B, C any] struct {
	A A
	B B
	C C
}

// WhenAny returns a Future that resolves with the value of whichever
// input Future is the first to resolve successfully. Errors from
// inputs are swallowed: if every input fails, the returned Future
// never resolves (matching the design this is ported from, which
// likewise has no representation for "all branches failed"). An
// empty inputs slice panics, since there is no first result to wait
// for.
func WhenAny[T any](ctx context.Context, r *Runtime, inputs []future.Future[T]) future.Future[T] {
	if len(inputs) == 0 {
		panic("minirts: WhenAny called with no inputs")
	}
	pool := mustPool(r)
	p := future.NewPromise[T](pool)
	var fulfilled atomic.Bool

	for _, f := range inputs {
		f.Subscribe(ctx,
			func(v T) {
				if fulfilled.CompareAndSwap(false, true) {
					p.SetValue(ctx, v)
				}
			},
			func(err error) {
				// Swallowed: WhenAny only reports the first success.
			},
		)
	}

	return p.Future()
}

// WhenAny2 combines two differently-typed Futures, resolving with
// whichever settles successfully first, tagged by Either so the
// caller can tell which branch won.
func WhenAny2[A, B any](ctx context.Context, r *Runtime, fa future.Future[A], fb future.Future[B]) future.Future[Either[A, B]] {
	pool := mustPool(r)
	p := future.NewPromise[Either[A, B]](pool)
	var fulfilled atomic.Bool

	fa.Subscribe(ctx,
		func(v A) {
			if fulfilled.CompareAndSwap(false, true) {
				p.SetValue(ctx, Either[A, B]{First: true, A: v})
			}
		},
		func(err error) {},
	)
	fb.Subscribe(ctx,
		func(v B) {
			if fulfilled.CompareAndSwap(false, true) {
				p.SetValue(ctx, Either[A, B]{First: false, B: v})
			}
		},
		func(err error) {},
	)

	return p.Future()
}

// Either is the result of WhenAny2: First is true when fa won the
// race, in which case A holds its value; otherwise B holds fb's.
type Either[A, B any] struct {
	First bool
	A     A
	B     B
}
