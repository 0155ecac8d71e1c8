// Package tracking records OpenTelemetry metrics and spans for REST operations.
package tracking

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/restbricks/observability"
)

const (
	// Instrumentation scope for meters and tracers
	instrumentationName = "restbricks/rest-client"

	// Metric names following OpenTelemetry semantic conventions
	metricRequestDuration = "http.client.request.duration" // Histogram in seconds
	metricRetries         = "rest.client.retries"          // Counter

	attrHTTPRequestMethod  = "http.request.method"
	attrHTTPResponseStatus = "http.response.status_code"
	attrServerAddress      = "server.address"
	attrErrorType          = "error.type"
	attrRetryReason        = "rest.retry.reason"
	attrRetryCount         = "rest.retry.count"
	attrRequestID          = "rest.request.id"
)

// Request duration buckets recommended for HTTP latency
var durationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
}

// Recorder emits metrics and spans. The zero value is not usable; a nil
// *Recorder records nothing.
type Recorder struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	duration   metric.Float64Histogram
	retries    metric.Int64Counter
}

// logMetricError logs a metric initialization error to stderr.
// Metrics failures never break request execution.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize REST client metric %s: %v\n", metricName, err)
	}
}

// NewRecorder creates instruments from the given providers, falling back to
// the global OpenTelemetry providers when nil. A nil propagator resolves the
// global propagator on every injection.
func NewRecorder(mp metric.MeterProvider, tp trace.TracerProvider, prop propagation.TextMapPropagator) *Recorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	meter := mp.Meter(instrumentationName)
	r := &Recorder{
		tracer:     tp.Tracer(instrumentationName),
		propagator: prop,
	}

	var err error
	r.duration, err = observability.CreateHistogram(meter,
		metricRequestDuration,
		"Duration of REST client attempts",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	logMetricError(metricRequestDuration, err)

	r.retries, err = observability.CreateCounter(meter,
		metricRetries,
		"Number of retries scheduled by retry strategies",
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	return r
}

// StartOperation opens the client span covering every attempt of one logical
// operation.
func (r *Recorder) StartOperation(ctx context.Context, method, host, requestID string) (context.Context, trace.Span) {
	if r == nil || r.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, "REST "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrHTTPRequestMethod, method),
			attribute.String(attrServerAddress, host),
			attribute.String(attrRequestID, requestID),
		),
	)
}

// EndOperation records the final outcome on span and ends it.
func EndOperation(span trace.Span, status, retries int, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int(attrHTTPResponseStatus, status))
		if status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
	span.SetAttributes(attribute.Int(attrRetryCount, retries))
	span.End()
}

// Inject writes the trace context of ctx into outgoing headers
func (r *Recorder) Inject(ctx context.Context, h http.Header) {
	if r == nil {
		return
	}
	p := r.propagator
	if p == nil {
		p = otel.GetTextMapPropagator()
	}
	p.Inject(ctx, propagation.HeaderCarrier(h))
}

// RecordAttempt records the duration of one attempt. errType is empty on success.
func (r *Recorder) RecordAttempt(ctx context.Context, method string, status int, errType string, d time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(attrHTTPRequestMethod, method)}
	if status > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPResponseStatus, status))
	}
	if errType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errType))
	}
	r.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRetry counts one scheduled retry. reason is "status" or "transport".
func (r *Recorder) RecordRetry(ctx context.Context, method, reason string) {
	if r == nil || r.retries == nil {
		return
	}
	r.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrHTTPRequestMethod, method),
		attribute.String(attrRetryReason, reason),
	))
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(attribute.String(attrRetryReason, reason)))
}
