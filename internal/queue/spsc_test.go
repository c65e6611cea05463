package queue

import (
	"sync"
	"testing"
)

func TestSPSCEnqueueDequeueOrder(t *testing.T) {
	q := NewSPSC[int](8)

	for i := 0; i < 5; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue %d failed unexpectedly", i)
		}
	}

	for i := 0; i < 5; i++ {
		v, ok := q.Dequeue()
		if !ok {
			t.Fatalf("dequeue %d: expected value, got empty", i)
		}
		if v != i {
			t.Fatalf("dequeue order: want %d, got %d", i, v)
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue after draining")
	}
}

func TestSPSCFullReturnsFalse(t *testing.T) {
	q := NewSPSC[int](4) // rounds to 4, holds at most 4 (cap-1 not applied here: mask semantics)

	filled := 0
	for q.Enqueue(filled) {
		filled++
		if filled > 100 {
			t.Fatal("enqueue never reported full")
		}
	}
	if filled != q.Cap() {
		t.Fatalf("expected to fill exactly capacity %d, filled %d", q.Cap(), filled)
	}
}

func TestSPSCConcurrentProducerConsumer(t *testing.T) {
	const n = 200000
	q := NewSPSC[int](256)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.Enqueue(i) {
			}
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(got) < n {
			if v, ok := q.Dequeue(); ok {
				got = append(got, v)
			}
		}
	}()

	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: want %d, got %d", i, i, v)
		}
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[uint64]uint64{0: 2, 1: 2, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		if got := nextPow2(in); got != want {
			t.Errorf("nextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
