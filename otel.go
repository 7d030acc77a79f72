package avatarmail

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/playforge/avatarmail"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the service.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	createLatency metric.Float64Histogram
	createCount   metric.Int64Counter
	createErrors  metric.Int64Counter
	readLatency   metric.Float64Histogram
	readCount     metric.Int64Counter
	readErrors    metric.Int64Counter
	deleteLatency metric.Float64Histogram
	deleteCount   metric.Int64Counter
	deleteErrors  metric.Int64Counter
	removeLatency metric.Float64Histogram
	removeCount   metric.Int64Counter
	removeErrors  metric.Int64Counter
	listLatency   metric.Float64Histogram
	listCount     metric.Int64Counter
	listErrors    metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	instruments := []struct {
		latency *metric.Float64Histogram
		count   *metric.Int64Counter
		errs    *metric.Int64Counter
		op      string
	}{
		{&o.createLatency, &o.createCount, &o.createErrors, "create"},
		{&o.readLatency, &o.readCount, &o.readErrors, "read"},
		{&o.deleteLatency, &o.deleteCount, &o.deleteErrors, "delete"},
		{&o.removeLatency, &o.removeCount, &o.removeErrors, "remove"},
		{&o.listLatency, &o.listCount, &o.listErrors, "list"},
	}

	for _, in := range instruments {
		var err error
		*in.latency, err = meter.Float64Histogram(
			"avatarmail."+in.op+".duration",
			metric.WithDescription("Duration of "+in.op+" operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return err
		}
		*in.count, err = meter.Int64Counter(
			"avatarmail."+in.op+".count",
			metric.WithDescription("Number of "+in.op+" operations"),
		)
		if err != nil {
			return err
		}
		*in.errs, err = meter.Int64Counter(
			"avatarmail."+in.op+".errors",
			metric.WithDescription("Number of "+in.op+" errors"),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// startSpan starts a new span if tracing is enabled.
// The returned function records the outcome and ends the span.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordCreate records create operation metrics.
func (o *otelInstrumentation) recordCreate(ctx context.Context, duration time.Duration, system bool, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("system", system),
	)

	o.createLatency.Record(ctx, duration.Seconds(), attrs)
	o.createCount.Add(ctx, 1, attrs)
	if err != nil {
		o.createErrors.Add(ctx, 1, attrs)
	}
}

// recordRead records read operation metrics.
func (o *otelInstrumentation) recordRead(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}

	o.readLatency.Record(ctx, duration.Seconds())
	o.readCount.Add(ctx, 1)
	if err != nil {
		o.readErrors.Add(ctx, 1)
	}
}

// recordDelete records delete operation metrics.
func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, removed bool, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("removed", removed),
	)

	o.deleteLatency.Record(ctx, duration.Seconds(), attrs)
	o.deleteCount.Add(ctx, 1, attrs)
	if err != nil {
		o.deleteErrors.Add(ctx, 1, attrs)
	}
}

// recordRemove records purge operation metrics.
func (o *otelInstrumentation) recordRemove(ctx context.Context, duration time.Duration, count int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("removed_count", count),
	)

	o.removeLatency.Record(ctx, duration.Seconds(), attrs)
	o.removeCount.Add(ctx, 1, attrs)
	if err != nil {
		o.removeErrors.Add(ctx, 1, attrs)
	}
}

// recordList records list operation metrics.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, kind string, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Int("result_count", resultCount),
	)

	o.listLatency.Record(ctx, duration.Seconds(), attrs)
	o.listCount.Add(ctx, 1, attrs)
	if err != nil {
		o.listErrors.Add(ctx, 1, attrs)
	}
}
