package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials/insecure"
)

func (p *provider) initMeterProvider(res *resource.Resource) error {
	exporter, err := p.createMetricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if p.config.Metrics.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(p.config.Metrics.Interval))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)
	return nil
}

func (p *provider) createMetricExporter() (sdkmetric.Exporter, error) {
	m := p.config.Metrics

	switch {
	case m.Endpoint == EndpointStdout:
		return stdoutmetric.New(stdoutmetric.WithWriter(p.writer), stdoutmetric.WithPrettyPrint())
	case m.Endpoint == "":
		return nil, ErrMissingEndpoint
	}

	switch protocolOf(m.Protocol) {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(m.Endpoint)}
		if m.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(m.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(m.Headers))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(m.Endpoint)}
		if m.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(m.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(m.Headers))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", m.Protocol, ErrInvalidProtocol)
	}
}

// CreateCounter creates a monotonic counter with a description.
//
//	retries, err := CreateCounter(meter, "rest.client.retries", "Retries scheduled")
//	retries.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "status")))
func CreateCounter(meter metric.Meter, name, description string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return meter.Int64Counter(
		name,
		append([]metric.Int64CounterOption{
			metric.WithDescription(description),
		}, opts...)...,
	)
}

// CreateHistogram creates a float64 histogram with a description.
func CreateHistogram(meter metric.Meter, name, description string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return meter.Float64Histogram(
		name,
		append([]metric.Float64HistogramOption{
			metric.WithDescription(description),
		}, opts...)...,
	)
}
