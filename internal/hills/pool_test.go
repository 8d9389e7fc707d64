package hills

import (
	"testing"
	"time"
)

func TestShortPoolReusesArrays(t *testing.T) {
	pool := newShortPool(4)

	first := pool.Get(10)
	if len(first) != 10 {
		t.Fatalf("len = %d, want 10", len(first))
	}

	pool.Recycle(first)

	second := pool.Get(8)
	if cap(second) < 8 {
		t.Fatalf("cap = %d, want >= 8", cap(second))
	}
	if &first[0] != &second[0] {
		t.Error("pool did not reuse the recycled array")
	}
}

func TestShortPoolAllocatesOnMiss(t *testing.T) {
	pool := newShortPool(4)

	pool.Recycle(make([]int16, 4))

	big := pool.Get(100)
	if len(big) != 100 {
		t.Fatalf("len = %d, want 100", len(big))
	}
}

func TestShortPoolBoundsRetention(t *testing.T) {
	pool := newShortPool(2)

	for i := 0; i < 5; i++ {
		pool.Recycle(make([]int16, 8))
	}

	if got := len(pool.arrays); got != 2 {
		t.Errorf("pooled %d arrays, want 2", got)
	}

	pool.Recycle(nil)
	if got := len(pool.arrays); got != 2 {
		t.Errorf("nil recycle changed the pool to %d entries", got)
	}
}

func TestAwaiterWakesOnNotify(t *testing.T) {
	a := newAwaiter()

	ready := make(chan struct{})
	released := make(chan struct{})

	go func() {
		var pass bool
		a.DoWait(func() bool {
			select {
			case <-ready:
				pass = true
			default:
			}
			return pass
		})
		close(released)
	}()

	time.Sleep(10 * time.Millisecond)
	close(ready)
	a.DoNotify()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never released")
	}
}

func TestAwaiterSurvivesLostNotification(t *testing.T) {
	a := newAwaiter()

	// No notification at all: the timed wait re-evaluates the predicate.
	start := time.Now()
	released := make(chan struct{})

	go func() {
		deadline := start.Add(20 * time.Millisecond)
		a.DoWait(func() bool { return time.Now().After(deadline) })
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter stranded by a lost notification")
	}
}

func TestWorkerPoolRunsTasks(t *testing.T) {
	pool := newWorkerPool(2, 8)

	results := make(chan int, 8)
	for i := 0; i < 8; i++ {
		pool.Post(func() { results <- i })
	}
	pool.Close()

	seen := make(map[int]bool)
	for i := 0; i < 8; i++ {
		seen[<-results] = true
	}
	if len(seen) != 8 {
		t.Errorf("ran %d distinct tasks, want 8", len(seen))
	}
}

func TestNilWorkerPoolRunsInline(t *testing.T) {
	var pool *workerPool

	ran := false
	pool.Post(func() { ran = true })
	if !ran {
		t.Error("nil pool did not run the task inline")
	}

	pool.Close()
}
