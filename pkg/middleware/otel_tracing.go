package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/trainstats"
	"github.com/hyp3rd/trainstats/internal/telemetry/attrs"
	"github.com/hyp3rd/trainstats/pkg/stats"
)

// OTelTracingMiddleware wraps trainstats.Service methods with OpenTelemetry spans.
type OTelTracingMiddleware struct {
	next   trainstats.Service
	tracer trace.Tracer
	// static attributes applied to all spans
	commonAttrs []attribute.KeyValue
}

// OTelTracingOption allows configuring the tracing middleware.
type OTelTracingOption func(*OTelTracingMiddleware)

// WithCommonAttributes sets attributes applied to all spans.
func WithCommonAttributes(attributes ...attribute.KeyValue) OTelTracingOption {
	return func(m *OTelTracingMiddleware) { m.commonAttrs = append(m.commonAttrs, attributes...) }
}

// NewOTelTracingMiddleware creates a tracing middleware.
func NewOTelTracingMiddleware(next trainstats.Service, tracer trace.Tracer, opts ...OTelTracingOption) trainstats.Service {
	mw := &OTelTracingMiddleware{next: next, tracer: tracer}
	for _, o := range opts {
		o(mw)
	}

	return mw
}

// Submit implements Service.Submit with tracing.
func (mw OTelTracingMiddleware) Submit(ctx context.Context, c stats.Container) error {
	var attributes []attribute.KeyValue
	if !isNilContainer(c) {
		attributes = append(attributes,
			attribute.Int(attrs.AttrKeysCount, len(c.Keys())),
			attribute.Bool(attrs.AttrNested, c.Nested() != nil))
	}

	ctx, span := mw.startSpan(ctx, "trainstats.Submit", attributes...)
	defer span.End()

	err := mw.next.Submit(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

// Result implements Service.Result with tracing.
func (mw OTelTracingMiddleware) Result() *stats.Set {
	_, span := mw.startSpan(context.Background(), "trainstats.Result")
	defer span.End()

	out := mw.next.Result()
	span.SetAttributes(attribute.String(attrs.AttrSchema, out.Name()))

	return out
}

// Keys returns the top-level keys.
func (mw OTelTracingMiddleware) Keys() []string { return mw.next.Keys() }

// Get implements Service.Get with tracing.
func (mw OTelTracingMiddleware) Get(key string) (stats.Value, error) {
	_, span := mw.startSpan(context.Background(), "trainstats.Get", attribute.String(attrs.AttrStatKey, key))
	defer span.End()

	v, err := mw.next.Get(key)
	span.SetAttributes(attribute.Bool("hit", err == nil))

	return v, err
}

// Render implements Service.Render with tracing.
func (mw OTelTracingMiddleware) Render() string {
	_, span := mw.startSpan(context.Background(), "trainstats.Render")
	defer span.End()

	return mw.next.Render()
}

// Snapshot returns the snapshot.
func (mw OTelTracingMiddleware) Snapshot() *stats.Snapshot { return mw.next.Snapshot() }

// Reset implements Service.Reset with tracing.
func (mw OTelTracingMiddleware) Reset() {
	_, span := mw.startSpan(context.Background(), "trainstats.Reset")
	defer span.End()

	mw.next.Reset()
}

func (mw OTelTracingMiddleware) startSpan(ctx context.Context, name string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(mw.commonAttrs)+len(attributes))
	all = append(all, mw.commonAttrs...)
	all = append(all, attributes...)

	return mw.tracer.Start(ctx, name, trace.WithAttributes(all...))
}
