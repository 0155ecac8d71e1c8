// Package observability builds the OpenTelemetry tracer and meter providers
// that the REST client records into.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gaborage/restbricks/config"
)

// Exporter settings shared with the config package
const (
	EndpointStdout = config.EndpointStdout
	ProtocolHTTP   = config.ProtocolHTTP
	ProtocolGRPC   = config.ProtocolGRPC
)

// Provider owns the lifecycle of the tracer and meter providers.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and stops the exporters.
	Shutdown(ctx context.Context) error
	ForceFlush(ctx context.Context) error
}

type provider struct {
	config         config.ObservabilityConfig
	service        config.AppConfig
	writer         io.Writer
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// Option customises NewProvider
type Option func(*provider)

// WithWriter redirects the stdout exporters to w.
func WithWriter(w io.Writer) Option {
	return func(p *provider) {
		if w != nil {
			p.writer = w
		}
	}
}

// NewProvider creates providers for the enabled signals and installs them,
// together with the W3C trace context propagator, as the OpenTelemetry
// globals. When observability is disabled a no-op provider is returned and the
// globals are left untouched.
func NewProvider(cfg config.ObservabilityConfig, service config.AppConfig, opts ...Option) (Provider, error) {
	if !cfg.Enabled {
		return noopProvider{}, nil
	}

	p := &provider{config: cfg, service: service, writer: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}

	res, err := p.createResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Trace.Enabled {
		if err := p.initTraceProvider(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
		otel.SetTracerProvider(p.tracerProvider)
	}
	if cfg.Metrics.Enabled {
		if err := p.initMeterProvider(res); err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to initialize meter provider: %w", err),
				p.Shutdown(context.Background()),
			)
		}
		otel.SetMeterProvider(p.meterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func (p *provider) createResource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.service.Name),
			semconv.ServiceVersion(p.service.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTraceProvider(res *resource.Resource) error {
	exporter, err := p.createTraceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.config.Trace.SampleRate))),
	)
	return nil
}

func (p *provider) createTraceExporter() (sdktrace.SpanExporter, error) {
	t := p.config.Trace

	switch {
	case t.Endpoint == EndpointStdout:
		return stdouttrace.New(stdouttrace.WithWriter(p.writer), stdouttrace.WithPrettyPrint())
	case t.Endpoint == "":
		return nil, ErrMissingEndpoint
	}

	switch protocolOf(t.Protocol) {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.Endpoint)}
		if t.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(t.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(t.Headers))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.Endpoint)}
		if t.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(t.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(t.Headers))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", t.Protocol, ErrInvalidProtocol)
	}
}

// Unset protocols default to OTLP over HTTP
func protocolOf(protocol string) string {
	if protocol == "" {
		return ProtocolHTTP
	}
	return protocol
}

func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

func (p *provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (p *provider) ForceFlush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
