package workerpool

import (
	"sync/atomic"
	"testing"
)

func TestPool_RunsAllTasks(t *testing.T) {
	pool := New(4)
	var sum int64
	const n = 100
	for i := 0; i < n; i++ {
		i := i
		pool.Submit(func() {
			atomic.AddInt64(&sum, int64(i))
		})
	}
	pool.Wait()

	want := int64(n * (n - 1) / 2)
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}

	submitted, completed := pool.Stats().Snapshot()
	if submitted != n || completed != n {
		t.Fatalf("stats = (%d, %d), want (%d, %d)", submitted, completed, n, n)
	}
}

func TestPool_DefaultSize(t *testing.T) {
	pool := New(0)
	done := make(chan struct{})
	pool.Submit(func() { close(done) })
	<-done
	pool.Wait()
}
