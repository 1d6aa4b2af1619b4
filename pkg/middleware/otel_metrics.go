package middleware

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hyp3rd/trainstats"
	"github.com/hyp3rd/trainstats/internal/telemetry/attrs"
	"github.com/hyp3rd/trainstats/pkg/stats"
)

// OTelMetricsMiddleware emits OpenTelemetry metrics for service methods and
// exports the statistics of every submitted container: integer values with a
// sum rule feed a counter, event durations feed a histogram.
type OTelMetricsMiddleware struct {
	next  trainstats.Service
	meter metric.Meter

	// instruments
	calls     metric.Int64Counter
	durations metric.Float64Histogram
	counts    metric.Int64Counter
	events    metric.Float64Histogram
}

// NewOTelMetricsMiddleware constructs a metrics middleware using the provided meter.
func NewOTelMetricsMiddleware(next trainstats.Service, meter metric.Meter) (trainstats.Service, error) {
	calls, err := meter.Int64Counter("trainstats.calls")
	if err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}

	durations, err := meter.Float64Histogram("trainstats.duration.ms")
	if err != nil {
		return nil, fmt.Errorf("create histogram: %w", err)
	}

	counts, err := meter.Int64Counter("trainstats.stat.count")
	if err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}

	events, err := meter.Float64Histogram("trainstats.stat.event.ms")
	if err != nil {
		return nil, fmt.Errorf("create histogram: %w", err)
	}

	return &OTelMetricsMiddleware{
		next:      next,
		meter:     meter,
		calls:     calls,
		durations: durations,
		counts:    counts,
		events:    events,
	}, nil
}

// Submit implements Service.Submit with metrics. Statistics are exported only for accepted containers.
func (mw *OTelMetricsMiddleware) Submit(ctx context.Context, c stats.Container) error {
	start := time.Now()
	err := mw.next.Submit(ctx, c)
	mw.rec(ctx, "Submit", start, attribute.Bool("ok", err == nil))

	if err == nil {
		mw.export(ctx, c)
	}

	return err
}

// Result implements Service.Result with metrics.
func (mw *OTelMetricsMiddleware) Result() *stats.Set {
	start := time.Now()
	out := mw.next.Result()
	mw.rec(context.Background(), "Result", start)

	return out
}

// Keys returns the top-level keys.
func (mw *OTelMetricsMiddleware) Keys() []string { return mw.next.Keys() }

// Get implements Service.Get with metrics.
func (mw *OTelMetricsMiddleware) Get(key string) (stats.Value, error) {
	start := time.Now()
	v, err := mw.next.Get(key)
	mw.rec(context.Background(), "Get", start, attribute.String(attrs.AttrStatKey, key), attribute.Bool("hit", err == nil))

	return v, err
}

// Render implements Service.Render with metrics.
func (mw *OTelMetricsMiddleware) Render() string {
	start := time.Now()
	out := mw.next.Render()
	mw.rec(context.Background(), "Render", start)

	return out
}

// Snapshot returns the snapshot.
func (mw *OTelMetricsMiddleware) Snapshot() *stats.Snapshot { return mw.next.Snapshot() }

// Reset implements Service.Reset with metrics.
func (mw *OTelMetricsMiddleware) Reset() {
	start := time.Now()
	mw.next.Reset()
	mw.rec(context.Background(), "Reset", start)
}

// export walks c and its nested containers.
func (mw *OTelMetricsMiddleware) export(ctx context.Context, c stats.Container) {
	if isNilContainer(c) {
		return
	}

	for ; c != nil; c = c.Nested() {
		schema := ""
		if named, ok := c.(interface{ Name() string }); ok {
			schema = named.Name()
		}

		for _, key := range c.Keys() {
			v, err := c.Get(key)
			if err != nil {
				continue
			}

			set := metric.WithAttributes(attribute.String(attrs.AttrSchema, schema), attribute.String(attrs.AttrStatKey, key))

			switch v.Kind {
			case stats.KindInt:
				if summed(c, key) {
					mw.counts.Add(ctx, v.Int, set)
				}
			case stats.KindEvents:
				for _, ev := range v.Events {
					mw.events.Record(ctx, float64(ev.Duration)/float64(time.Millisecond), set)
				}
			case stats.KindInvalid, stats.KindFloat, stats.KindString, stats.KindDuration, stats.KindStrings:
			}
		}
	}
}

// summed reports whether c declares key with the sum rule. Only such values
// are deltas a counter may add up; containers without a schema are skipped.
func summed(c stats.Container, key string) bool {
	typed, ok := c.(interface{ Schema() *stats.Schema })
	if !ok || typed.Schema() == nil {
		return false
	}

	field, ok := typed.Schema().Field(key)

	return ok && field.Rule == stats.RuleSum
}

// rec records call count and duration with attributes.
func (mw *OTelMetricsMiddleware) rec(ctx context.Context, method string, start time.Time, attributes ...attribute.KeyValue) {
	base := []attribute.KeyValue{attribute.String(attrs.AttrMethod, method)}
	if len(attributes) > 0 {
		base = append(base, attributes...)
	}

	mw.calls.Add(ctx, 1, metric.WithAttributes(base...))
	mw.durations.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(base...))
}
