package rest

import (
	"context"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/restbricks/logger"
)

// Timeouts bounds a single attempt. Zero values disable the matching check.
type Timeouts struct {
	// Total is the ceiling for one attempt, connection to last body byte
	Total time.Duration
	// LowSpeedLimit is the throughput in bytes/sec under which the attempt
	// counts as stalled
	LowSpeedLimit int64
	// LowSpeedTime is how long the throughput may stay under LowSpeedLimit
	LowSpeedTime time.Duration
}

// Option configures a Service at construction
type Option func(*Service)

// RequestInterceptor may inspect or modify each outgoing attempt after the
// service has set its headers. A returned error aborts the operation.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor sees each response before its body is read. A returned
// error aborts the operation and no Response is returned.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// WithUserAgent sets the product and version sent as "<product>/<version>"
func WithUserAgent(product, version string) Option {
	return func(s *Service) {
		s.userAgent = product + "/" + version
	}
}

// WithDefaultHeaders sets the headers merged into every request
func WithDefaultHeaders(h Headers) Option {
	return func(s *Service) {
		s.defaultHeaders = h.Clone()
	}
}

// WithAuthentication sets the service-wide authentication
func WithAuthentication(auth Authentication) Option {
	return func(s *Service) {
		if auth != nil {
			s.auth = auth
		}
	}
}

// WithTimeouts replaces the default attempt timeouts
func WithTimeouts(t Timeouts) Option {
	return func(s *Service) {
		s.timeouts = t
	}
}

// WithRateLimit throttles attempts client-side. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTransport replaces the HTTP transport. The TLS verification flag given
// to NewService is not applied to a custom transport.
func WithTransport(rt nethttp.RoundTripper) Option {
	return func(s *Service) {
		if rt != nil {
			s.transport = rt
		}
	}
}

// WithRequestInterceptor appends a request interceptor
func WithRequestInterceptor(interceptor RequestInterceptor) Option {
	return func(s *Service) {
		if interceptor != nil {
			s.requestInterceptors = append(s.requestInterceptors, interceptor)
		}
	}
}

// WithResponseInterceptor appends a response interceptor
func WithResponseInterceptor(interceptor ResponseInterceptor) Option {
	return func(s *Service) {
		if interceptor != nil {
			s.responseInterceptors = append(s.responseInterceptors, interceptor)
		}
	}
}

// WithMeterProvider selects the meter provider for request metrics
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// WithTracerProvider selects the tracer provider for operation spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
	}
}

// WithPropagator selects the propagator injecting trace context into requests
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(s *Service) {
		s.propagator = p
	}
}

// Builder provides a fluent interface for configuring a Service
type Builder struct {
	baseURL   string
	verifyTLS bool
	log       logger.Logger
	headers   Headers
	opts      []Option
}

// NewBuilder creates a builder for a service rooted at baseURL. TLS
// certificates are verified unless WithVerifyTLS(false) is called.
func NewBuilder(baseURL string, log logger.Logger) *Builder {
	return &Builder{
		baseURL:   baseURL,
		verifyTLS: true,
		log:       log,
		headers:   Headers{},
	}
}

// WithVerifyTLS toggles server certificate verification
func (b *Builder) WithVerifyTLS(verify bool) *Builder {
	b.verifyTLS = verify
	return b
}

// WithUserAgent sets the User-Agent product and version
func (b *Builder) WithUserAgent(product, version string) *Builder {
	b.opts = append(b.opts, WithUserAgent(product, version))
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.headers.Set(key, value)
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.opts = append(b.opts, WithAuthentication(BasicAuthentication{Username: username, Password: password}))
	return b
}

// WithTimeouts sets the per-attempt timeouts
func (b *Builder) WithTimeouts(t Timeouts) *Builder {
	b.opts = append(b.opts, WithTimeouts(t))
	return b
}

// WithRateLimit throttles attempts to rps with the given burst
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.opts = append(b.opts, WithRateLimit(rps, burst))
	return b
}

// WithTransport replaces the HTTP transport
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.opts = append(b.opts, WithTransport(rt))
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.opts = append(b.opts, WithRequestInterceptor(interceptor))
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.opts = append(b.opts, WithResponseInterceptor(interceptor))
	return b
}

// WithMeterProvider selects the meter provider
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.opts = append(b.opts, WithMeterProvider(mp))
	return b
}

// WithTracerProvider selects the tracer provider
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.opts = append(b.opts, WithTracerProvider(tp))
	return b
}

// Build creates the service with the configured options
func (b *Builder) Build() *Service {
	opts := make([]Option, 0, len(b.opts)+1)
	if len(b.headers) > 0 {
		opts = append(opts, WithDefaultHeaders(b.headers))
	}
	opts = append(opts, b.opts...)
	return NewService(b.baseURL, b.verifyTLS, b.log, opts...)
}
