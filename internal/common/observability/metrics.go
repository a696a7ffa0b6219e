package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the tracer used around backend calls and the
// enrollment outcome instruments. A nil *Observability is valid and records
// nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	tracer        trace.Tracer
	resolutions   otelmetric.Int64Counter
	enrollTime    otelmetric.Float64Histogram
}

// New wires an OpenTelemetry meter provider exporting through the default
// prometheus registry. Exporter failures degrade to tracing only.
func New(serviceName string) (*Observability, error) {
	o := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		return o, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	o.meterProvider = provider
	o.resolutions, _ = meter.Int64Counter(
		"enrollment.resolutions",
		otelmetric.WithDescription("Resolved enrollment attempts by outcome"),
	)
	o.enrollTime, _ = meter.Float64Histogram(
		"enrollment.redirect_roundtrip",
		otelmetric.WithDescription("Time between subscription creation and provider return"),
		otelmetric.WithUnit("s"),
	)
	return o, nil
}

// StartSpan opens a client span. Safe on a nil receiver.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("member-portal")
	if o != nil && o.tracer != nil {
		tracer = o.tracer
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// RecordResolution counts a resolved enrollment (success, failure, cancelled).
func (o *Observability) RecordResolution(ctx context.Context, outcome, tier string) {
	if o == nil || o.resolutions == nil {
		return
	}
	o.resolutions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("tier", tier),
	))
}

// RecordRoundTrip records how long the member spent at the payment provider.
func (o *Observability) RecordRoundTrip(ctx context.Context, d time.Duration, outcome string) {
	if o == nil || o.enrollTime == nil {
		return
	}
	o.enrollTime.Record(ctx, d.Seconds(), otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
