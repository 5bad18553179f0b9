package telemetry

import (
	"context"
	"time"

	"github.com/vango-dev/reactive/pkg/reactive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for the reactive engine.
const defaultTracerName = "reactive"

// TracerConfig configures the OpenTelemetry observer.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "reactive").
	TracerName string

	// Provider is the tracer provider. Default: the global provider.
	Provider trace.TracerProvider

	// MinDuration suppresses spans for flushes faster than this.
	// Failed flushes are always traced.
	MinDuration time.Duration
}

// TracerOption configures the OpenTelemetry observer.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(c *TracerConfig) {
		c.Provider = tp
	}
}

// WithMinDuration only traces flushes that take at least d.
func WithMinDuration(d time.Duration) TracerOption {
	return func(c *TracerConfig) {
		c.MinDuration = d
	}
}

// Tracer is a reactive.Observer that emits one span per flush. Spans are
// created after the fact with the flush's own start and end timestamps.
// Disposals and discarded results become events on the span found in the
// observer context, if any.
type Tracer struct {
	tracer      trace.Tracer
	minDuration time.Duration
}

// NewTracer creates a tracing observer.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	rt := reactive.NewRuntime(reactive.WithObserver(telemetry.NewTracer()))
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:      config.Provider.Tracer(config.TracerName),
		minDuration: config.MinDuration,
	}
}

// ObserveFlush implements reactive.Observer.
func (t *Tracer) ObserveFlush(ctx context.Context, stats reactive.FlushStats) {
	if stats.Err == nil && stats.Duration < t.minDuration {
		return
	}

	name := "reactive.flush"
	if stats.Name != "" {
		name = "reactive.flush " + stats.Name
	}
	_, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(stats.Start),
		trace.WithAttributes(
			attribute.String("reactive.batch", stats.Name),
			attribute.Int("reactive.rounds", stats.Rounds),
			attribute.Int("reactive.roots", stats.Roots),
			attribute.Int("reactive.visited", stats.Visited),
			attribute.Int("reactive.memo_runs", stats.MemoRuns),
			attribute.Int("reactive.memo_skips", stats.MemoSkips),
			attribute.Int("reactive.effect_runs", stats.EffectRuns),
			attribute.Int("reactive.effect_skips", stats.EffectSkips),
		),
	)
	if stats.Err != nil {
		span.RecordError(stats.Err)
		span.SetStatus(codes.Error, stats.Err.Error())
		if code := reactive.CodeOf(stats.Err); code != "" {
			span.SetAttributes(attribute.String("reactive.error_code", code))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(stats.Start.Add(stats.Duration)))
}

// ObserveDispose implements reactive.Observer.
func (t *Tracer) ObserveDispose(ctx context.Context, nodes int) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("reactive.dispose", trace.WithAttributes(attribute.Int("reactive.nodes", nodes)))
}

// ObserveDiscard implements reactive.Observer.
func (t *Tracer) ObserveDiscard(ctx context.Context, label string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("reactive.discard", trace.WithAttributes(attribute.String("reactive.label", label)))
}

var _ reactive.Observer = (*Tracer)(nil)
