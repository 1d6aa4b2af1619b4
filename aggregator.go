// Package trainstats reduces the statistics of a distributed training job.
//
// Workers each fill their own stats.Set; the coordinator owns an Aggregator
// and merges the per-worker sets into the job-level set one at a time. The
// Aggregator's lock is the only synchronization: stats.Set itself is not safe
// for concurrent use, and a set handed to Submit belongs to the aggregator
// from then on.
package trainstats

import (
	"context"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/internal/constants"
	"github.com/hyp3rd/trainstats/internal/sentinel"
	"github.com/hyp3rd/trainstats/pkg/stats"
)

// WorkerFunc produces the statistics of one parallel unit of work.
type WorkerFunc func(ctx context.Context) (stats.Container, error)

// Aggregator owns the job-level statistics and serializes merges into them.
type Aggregator struct {
	mu      sync.RWMutex
	schema  *stats.Schema
	result  *stats.Set
	workers int
}

// NewAggregator returns an aggregator whose job-level statistics follow schema.
func NewAggregator(schema *stats.Schema, options ...Option) (*Aggregator, error) {
	if schema == nil {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "schema")
	}

	a := &Aggregator{
		schema:  schema,
		result:  stats.New(schema),
		workers: constants.DefaultWorkers,
	}

	ApplyOptions(a, options...)

	return a, nil
}

// Schema returns the schema of the job-level statistics.
func (a *Aggregator) Schema() *stats.Schema { return a.schema }

// Submit merges c into the job statistics. A container of another schema
// fails with sentinel.ErrTypeMismatch and leaves the job statistics unchanged.
func (a *Aggregator) Submit(ctx context.Context, c stats.Container) error {
	err := ctx.Err()
	if err != nil {
		return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	err = a.result.Merge(c)
	if err != nil {
		return ewrap.Wrap(err, "submit")
	}

	return nil
}

// Run executes workers on a pool and merges what they produce. The merge
// happens on the calling goroutine into a scratch set that is submitted only
// when every worker succeeded, so a failed run leaves the job statistics as
// they were. The first error is returned.
func (a *Aggregator) Run(ctx context.Context, workers ...WorkerFunc) error {
	pool := NewWorkerPool(min(a.workers, max(1, len(workers))))
	results := make(chan stats.Container, len(workers))

	go func() {
		for _, work := range workers {
			pool.Enqueue(func() error {
				c, err := work(ctx)
				if err != nil {
					return err
				}

				results <- c

				return nil
			})
		}

		pool.Shutdown()
		close(results)
	}()

	scratch := stats.New(a.schema)

	var firstErr error

	resultsCh, errCh, done := results, pool.Errors(), ctx.Done()
	for resultsCh != nil || errCh != nil {
		select {
		case c, ok := <-resultsCh:
			if !ok {
				resultsCh = nil

				continue
			}

			if firstErr == nil {
				err := scratch.Merge(c)
				if err != nil {
					firstErr = ewrap.Wrap(err, "reduce")
				}
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil

				continue
			}

			if firstErr == nil {
				firstErr = ewrap.Wrap(err, "worker")
			}
		case <-done:
			done = nil

			if firstErr == nil {
				firstErr = ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, ctx.Err().Error())
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.result.Merge(scratch)
}

// Result returns a copy of the job statistics.
func (a *Aggregator) Result() *stats.Set {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.result.Clone()
}

// Keys returns the keys recorded at the top level of the job statistics.
func (a *Aggregator) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.result.Keys()
}

// Get returns a top-level value of the job statistics.
func (a *Aggregator) Get(key string) (stats.Value, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.result.Get(key)
}

// Render returns the human-readable job statistics.
func (a *Aggregator) Render() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.result.String()
}

// Snapshot exports the job statistics.
func (a *Aggregator) Snapshot() *stats.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.result.Snapshot()
}

// Reset drops everything merged so far.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.result = stats.New(a.schema)
}

// Reduce merges containers, in order, into a new set of schema. The inputs are not modified.
func Reduce(schema *stats.Schema, containers ...stats.Container) (*stats.Set, error) {
	if schema == nil {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "schema")
	}

	out := stats.New(schema)

	for i, c := range containers {
		err := out.Merge(c)
		if err != nil {
			return nil, ewrap.Wrapf(err, "reduce container %d", i)
		}
	}

	return out, nil
}
