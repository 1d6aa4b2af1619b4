package training

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/pkg/stats"
)

// TimerOption configures an EventTimer.
type TimerOption func(*EventTimer)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) TimerOption {
	return func(t *EventTimer) { t.now = now }
}

// WithMachineID overrides the host name stamped on events.
func WithMachineID(id string) TimerOption {
	return func(t *EventTimer) { t.machineID = id }
}

// WithWorkerID sets the worker id stamped on events.
func WithWorkerID(id string) TimerOption {
	return func(t *EventTimer) { t.workerID = id }
}

// EventTimer produces events stamped with where they happened.
type EventTimer struct {
	machineID string
	processID string
	workerID  string
	now       func() time.Time
}

// NewEventTimer returns a timer stamping events with the host name and process id.
func NewEventTimer(opts ...TimerOption) *EventTimer {
	timer := &EventTimer{
		processID: strconv.Itoa(os.Getpid()),
		now:       time.Now,
	}

	if host, err := os.Hostname(); err == nil {
		timer.machineID = host
	}

	for _, opt := range opts {
		opt(timer)
	}

	return timer
}

// MachineID returns the machine id stamped on events.
func (t *EventTimer) MachineID() string { return t.machineID }

// Start begins an event; calling the returned function ends it.
func (t *EventTimer) Start() func() stats.Event {
	start := t.now()

	return func() stats.Event {
		return stats.Event{
			MachineID: t.machineID,
			ProcessID: t.processID,
			WorkerID:  t.workerID,
			Start:     start,
			Duration:  t.now().Sub(start),
		}
	}
}

// Time runs fn and records its duration under key in set. The event is
// recorded even when fn fails; fn's error is returned.
func (t *EventTimer) Time(set *stats.Set, key string, fn func() error) error {
	stop := t.Start()
	runErr := fn()

	err := set.Record(key, stats.Events(stop()))
	if err != nil {
		return errors.Join(runErr, ewrap.Wrapf(err, "time %q", key))
	}

	return runErr
}

// RecordFit accounts one fit over a minibatch of examples on a worker set:
// the fit duration, the example and minibatch counts, the resulting score and
// the machine it ran on.
func (t *EventTimer) RecordFit(worker *stats.Set, examples int, fit func() (float64, error)) error {
	var score float64

	err := t.Time(worker, WorkerFitTimes, func() error {
		var fitErr error

		score, fitErr = fit()

		return fitErr
	})
	if err != nil {
		return err
	}

	values := map[string]stats.Value{
		WorkerExampleCount:   stats.Int(int64(examples)),
		WorkerMinibatchCount: stats.Int(1),
		WorkerLastScore:      stats.Float(score),
	}
	if t.machineID != "" {
		values[WorkerMachineIDs] = stats.Strings(t.machineID)
	}

	for key, v := range values {
		err = worker.Record(key, v)
		if err != nil {
			return err
		}
	}

	return nil
}
