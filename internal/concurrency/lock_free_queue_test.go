package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLockFreeQueueMPMC(t *testing.T) {
	q := NewLockFreeQueue[int](1024)
	const producers = 8
	const consumers = 8
	const itemsPerProducer = 2000
	total := int64(producers * itemsPerProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				for !q.Enqueue(pid*itemsPerProducer + i) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	var received int64
	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for atomic.LoadInt64(&received) < total {
				if _, ok := q.Dequeue(); ok {
					atomic.AddInt64(&received, 1)
				} else {
					runtime.Gosched()
				}
			}
		}()
	}

	wg.Wait()
	cwg.Wait()

	if received != total {
		t.Fatalf("received = %d, want %d", received, total)
	}
}

func TestLockFreeQueueFIFOSingleProducer(t *testing.T) {
	q := NewLockFreeQueue[int](8)
	for i := 0; i < 5; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Dequeue()
		if !ok || v != i {
			t.Fatalf("dequeue = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
}
