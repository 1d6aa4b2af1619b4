// Package middleware provides various middleware implementations for the trainstats service.
// This package includes logging middleware that wraps the service to provide
// execution time logging and method call tracing for debugging and monitoring purposes,
// and OpenTelemetry metrics and tracing middlewares.
package middleware

import (
	"context"
	"time"

	"github.com/hyp3rd/trainstats"
	"github.com/hyp3rd/trainstats/pkg/stats"
)

// LoggingMiddleware is a middleware that logs the time it takes to execute the next middleware.
// Must implement the trainstats.Service interface.
type LoggingMiddleware struct {
	next   trainstats.Service
	logger trainstats.Logger
}

// NewLoggingMiddleware returns a new LoggingMiddleware.
func NewLoggingMiddleware(next trainstats.Service, logger trainstats.Logger) trainstats.Service {
	return &LoggingMiddleware{next: next, logger: logger}
}

// Submit logs the time it takes to merge a container and the outcome.
func (mw LoggingMiddleware) Submit(ctx context.Context, c stats.Container) (err error) {
	defer func(begin time.Time) {
		if err != nil {
			mw.logger.Printf("method Submit failed after %s: %v", time.Since(begin), err)

			return
		}

		mw.logger.Printf("method Submit took: %s", time.Since(begin))
	}(time.Now())

	if isNilContainer(c) {
		mw.logger.Printf("Submit method invoked with a nil container")
	} else {
		mw.logger.Printf("Submit method invoked with %d keys", len(c.Keys()))
	}

	return mw.next.Submit(ctx, c)
}

// Result logs the time it takes to copy the job statistics.
func (mw LoggingMiddleware) Result() *stats.Set {
	defer func(begin time.Time) {
		mw.logger.Printf("method Result took: %s", time.Since(begin))
	}(time.Now())

	return mw.next.Result()
}

// Keys passes through.
func (mw LoggingMiddleware) Keys() []string {
	return mw.next.Keys()
}

// Get logs lookups of missing keys.
func (mw LoggingMiddleware) Get(key string) (stats.Value, error) {
	v, err := mw.next.Get(key)
	if err != nil {
		mw.logger.Printf("Get method failed for key %s: %v", key, err)
	}

	return v, err
}

// Render logs the time it takes to render the job statistics.
func (mw LoggingMiddleware) Render() string {
	defer func(begin time.Time) {
		mw.logger.Printf("method Render took: %s", time.Since(begin))
	}(time.Now())

	return mw.next.Render()
}

// Snapshot passes through.
func (mw LoggingMiddleware) Snapshot() *stats.Snapshot {
	return mw.next.Snapshot()
}

// Reset logs the reset.
func (mw LoggingMiddleware) Reset() {
	mw.logger.Printf("Reset method invoked")
	mw.next.Reset()
}

// isNilContainer reports whether c is nil, including a nil *stats.Set held in the interface.
func isNilContainer(c stats.Container) bool {
	if c == nil {
		return true
	}

	set, ok := c.(*stats.Set)

	return ok && set == nil
}
