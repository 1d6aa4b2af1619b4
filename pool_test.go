package trainstats

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_EnqueueAndShutdown(t *testing.T) {
	pool := NewWorkerPool(3)

	var mu sync.Mutex

	results := []int{}

	// Enqueue 5 jobs
	for i := range 5 {
		val := i
		pool.Enqueue(func() error {
			mu.Lock()

			results = append(results, val)

			mu.Unlock()

			return nil
		})
	}

	pool.Shutdown()

	if len(results) != 5 {
		t.Errorf("expected 5 results, got %d", len(results))
	}
}

func TestWorkerPool_JobErrorHandling(t *testing.T) {
	pool := NewWorkerPool(2)
	expectedErr := errors.New("job error")
	pool.Enqueue(func() error {
		return expectedErr
	})
	pool.Enqueue(func() error {
		return nil
	})

	go func() {
		time.Sleep(100 * time.Millisecond)
		pool.Shutdown()
	}()

	var gotErr error
	for err := range pool.Errors() {
		if errors.Is(err, expectedErr) {
			gotErr = err
		}
	}

	if gotErr == nil {
		t.Errorf("expected error to be received from Errors channel")
	}
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)

	var running, peak atomic.Int32

	for range 8 {
		pool.Enqueue(func() error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			running.Add(-1)

			return nil
		})
	}

	pool.Shutdown()

	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent jobs, got %d", peak.Load())
	}
}

func TestWorkerPool_ZeroWorkersStillRuns(t *testing.T) {
	pool := NewWorkerPool(0)
	done := make(chan struct{})

	pool.Enqueue(func() error {
		close(done)

		return nil
	})

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job was not processed")
	}

	pool.Shutdown()
}

func TestWorkerPool_EnqueueAfterShutdownPanics(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic when enqueuing after shutdown")
		}
	}()

	pool.Enqueue(func() error { return nil })
}
