package trainstats

import (
	"sync"
)

// JobFunc is a function that can be enqueued in a worker pool.
type JobFunc func() error

// WorkerPool runs jobs on a fixed number of goroutines.
type WorkerPool struct {
	workers   int
	jobs      chan JobFunc
	wg        sync.WaitGroup
	errorChan chan error
}

// NewWorkerPool creates a new worker pool with the given number of workers.
// Job errors are delivered on Errors, which the caller must drain while jobs run.
func NewWorkerPool(workers int) *WorkerPool {
	workers = max(1, workers)

	pool := &WorkerPool{
		workers:   workers,
		jobs:      make(chan JobFunc, workers),
		errorChan: make(chan error, workers),
	}
	pool.start()

	return pool
}

// Enqueue adds a job to the worker pool. It blocks while every worker is busy
// and the queue is full. Enqueue after Shutdown panics.
func (pool *WorkerPool) Enqueue(job JobFunc) {
	pool.wg.Add(1)

	pool.jobs <- job
}

// Shutdown waits for every enqueued job to finish, then stops the workers and closes Errors.
func (pool *WorkerPool) Shutdown() {
	pool.wg.Wait()
	close(pool.jobs)
	close(pool.errorChan)
}

// Errors returns a channel that can be used to receive errors from the worker pool.
func (pool *WorkerPool) Errors() <-chan error {
	return pool.errorChan
}

// start starts the worker pool.
func (pool *WorkerPool) start() {
	for range pool.workers {
		go pool.worker()
	}
}

// worker is the main loop executed by each worker goroutine.
func (pool *WorkerPool) worker() {
	for job := range pool.jobs {
		err := job()
		if err != nil {
			pool.errorChan <- err
		}

		pool.wg.Done()
	}
}
