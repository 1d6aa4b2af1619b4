package trainstats

import (
	"context"

	"github.com/hyp3rd/trainstats/pkg/stats"
)

// Service is the coordinator-side view of a job's statistics.
// It enables middleware to be added to the service.
type Service interface {
	// Submit merges one container, typically produced by a worker, into the job statistics.
	Submit(ctx context.Context, c stats.Container) error
	// Result returns a copy of the job statistics.
	Result() *stats.Set
	// Keys returns the keys recorded at the top level of the job statistics.
	Keys() []string
	// Get returns a top-level value of the job statistics.
	Get(key string) (stats.Value, error)
	// Render returns the human-readable job statistics.
	Render() string
	// Snapshot exports the job statistics.
	Snapshot() *stats.Snapshot
	// Reset drops everything merged so far.
	Reset()
}

// Logger describes a logging interface allowing to implement different external, or custom logger.
// Tested with logrus, but should work with any other logger that matches the interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Middleware describes a service middleware.
type Middleware func(Service) Service

// ApplyMiddleware applies middlewares to a service.
func ApplyMiddleware(svc Service, mw ...Middleware) Service {
	// Apply each middleware in the chain
	for _, m := range mw {
		svc = m(svc)
	}
	// Return the decorated service
	return svc
}
