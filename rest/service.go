package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/restbricks/logger"
	"github.com/gaborage/restbricks/rest/internal/tracking"
	"github.com/gaborage/restbricks/trace"
)

const (
	// MaxRedirects is the number of redirects followed per attempt. Each
	// retry starts a fresh redirect chain.
	MaxRedirects = 20

	// DefaultTimeout is the default ceiling for one attempt
	DefaultTimeout = 2 * time.Minute

	// DefaultProduct and DefaultVersion form the default User-Agent
	DefaultProduct = "restbricks"
	DefaultVersion = "1.0.0"
)

// Service executes REST requests against one base URL. It is safe for
// concurrent use; default headers, authentication and timeouts are read once
// when a request is issued.
type Service struct {
	baseURL   *url.URL
	baseErr   error
	transport nethttp.RoundTripper
	logger    logger.Logger
	userAgent string
	limiter   *rate.Limiter
	recorder  *tracking.Recorder

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	meterProvider  metric.MeterProvider
	tracerProvider oteltrace.TracerProvider
	propagator     propagation.TextMapPropagator

	mu             sync.RWMutex
	defaultHeaders Headers
	auth           Authentication
	timeouts       Timeouts
}

// settings is the copy of the mutable service state a request runs with
type settings struct {
	headers  Headers
	auth     Authentication
	timeouts Timeouts
}

// NewService creates a service rooted at baseURL. When verifyTLS is false,
// server certificates are accepted without verification. An unparsable
// baseURL is reported by every request as a configuration error.
func NewService(baseURL string, verifyTLS bool, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		logger:         log,
		userAgent:      DefaultProduct + "/" + DefaultVersion,
		defaultHeaders: Headers{},
		auth:           NoAuthentication{},
		timeouts:       Timeouts{Total: DefaultTimeout},
	}

	u, err := url.Parse(baseURL)
	switch {
	case err != nil:
		s.baseErr = NewConfigurationError(fmt.Sprintf("invalid base URL %q: %v", baseURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		s.baseErr = NewConfigurationError(fmt.Sprintf("invalid base URL %q: scheme must be http or https", baseURL))
	default:
		s.baseURL = u
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = newTransport(verifyTLS)
	}
	s.recorder = tracking.NewRecorder(s.meterProvider, s.tracerProvider, s.propagator)
	return s
}

func newTransport(verifyTLS bool) *nethttp.Transport {
	t := nethttp.DefaultTransport.(*nethttp.Transport).Clone()
	t.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verifyTLS, //nolint:gosec // caller-controlled toggle
	}
	return t
}

// BaseURL returns the URL requests are resolved against
func (s *Service) BaseURL() string {
	if s.baseURL == nil {
		return ""
	}
	return s.baseURL.String()
}

// SetTimeout replaces the attempt timeouts: total ceiling, and the stall
// detector's minimum throughput and observation window.
func (s *Service) SetTimeout(total time.Duration, lowSpeedLimit int64, lowSpeedTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts = Timeouts{Total: total, LowSpeedLimit: lowSpeedLimit, LowSpeedTime: lowSpeedTime}
}

// SetDefaultHeaders replaces the headers merged into every request
func (s *Service) SetDefaultHeaders(h Headers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultHeaders = h.Clone()
}

// SetAuthentication replaces the service-wide authentication. A nil value
// disables authentication.
func (s *Service) SetAuthentication(auth Authentication) {
	if auth == nil {
		auth = NoAuthentication{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

func (s *Service) snapshot() settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return settings{
		headers:  s.defaultHeaders.Clone(),
		auth:     s.auth,
		timeouts: s.timeouts,
	}
}

// Get performs a single GET attempt
func (s *Service) Get(ctx context.Context, path string, headers Headers) (*Response, error) {
	return s.Do(ctx, &Request{Method: nethttp.MethodGet, Path: path, Headers: headers}, nil)
}

// Head performs a single HEAD attempt
func (s *Service) Head(ctx context.Context, path string, headers Headers) (*Response, error) {
	return s.Do(ctx, &Request{Method: nethttp.MethodHead, Path: path, Headers: headers}, nil)
}

// Post performs a single POST attempt
func (s *Service) Post(ctx context.Context, path string, body any, headers Headers) (*Response, error) {
	return s.Do(ctx, &Request{Method: nethttp.MethodPost, Path: path, Body: body, Headers: headers}, nil)
}

// Put performs a single PUT attempt
func (s *Service) Put(ctx context.Context, path string, body any, headers Headers) (*Response, error) {
	return s.Do(ctx, &Request{Method: nethttp.MethodPut, Path: path, Body: body, Headers: headers}, nil)
}

// Patch performs a single PATCH attempt
func (s *Service) Patch(ctx context.Context, path string, body any, headers Headers) (*Response, error) {
	return s.Do(ctx, &Request{Method: nethttp.MethodPatch, Path: path, Body: body, Headers: headers}, nil)
}

// Delete performs a single DELETE attempt
func (s *Service) Delete(ctx context.Context, path string, body any, headers Headers) (*Response, error) {
	return s.Do(ctx, &Request{Method: nethttp.MethodDelete, Path: path, Body: body, Headers: headers}, nil)
}

// Execute runs req through Do and returns only the status of the last attempt
func (s *Service) Execute(ctx context.Context, req *Request, strategy RetryStrategy) (int, error) {
	resp, err := s.Do(ctx, req, strategy)
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// call is one logical operation prepared for execution
type call struct {
	method    string
	url       string
	body      encodedBody
	headers   Headers
	auth      Authentication
	timeouts  Timeouts
	requestID string
}

// Do executes req, re-issuing it while strategy agrees. A nil strategy makes
// exactly one attempt. Non-2xx statuses are returned as responses; transport
// failures are returned as *ConnectionError.
func (s *Service) Do(ctx context.Context, req *Request, strategy RetryStrategy) (*Response, error) {
	c, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if strategy != nil {
		if err := strategy.Start(); err != nil {
			return nil, err
		}
	}

	ctx = trace.WithRequestID(ctx, c.requestID)
	ctx, span := s.recorder.StartOperation(ctx, c.method, s.baseURL.Host, c.requestID)

	start := time.Now()
	attempts := 0
	for {
		attempts++
		resp, err := s.attempt(ctx, c, attempts)
		if !shouldRetry(ctx, strategy, resp, err) {
			return s.finish(span, c, strategy, start, attempts, resp, err)
		}

		wait := strategy.NextSleepTime()
		s.logRetry(c, attempts, wait, resp, err)
		s.recorder.RecordRetry(ctx, c.method, retryReason(err))

		if sleepErr := sleepContext(ctx, wait); sleepErr != nil {
			return s.finish(span, c, strategy, start, attempts, nil,
				NewConnectionError("request aborted while waiting to retry", sleepErr))
		}
		strategy.RecordRetry()
	}
}

func (s *Service) prepare(ctx context.Context, req *Request) (*call, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if s.baseErr != nil {
		return nil, s.baseErr
	}
	target, err := resolveURL(s.baseURL, req.Path)
	if err != nil {
		return nil, err
	}
	body, err := encodeBody(req.Method, req.Body)
	if err != nil {
		return nil, err
	}

	snap := s.snapshot()
	auth := snap.auth
	if req.Auth != nil {
		auth = req.Auth
	}
	return &call{
		method:    req.Method,
		url:       target,
		body:      body,
		headers:   mergeHeaders(snap.headers, req.Headers),
		auth:      auth,
		timeouts:  snap.timeouts,
		requestID: trace.EnsureRequestID(ctx),
	}, nil
}

func shouldRetry(ctx context.Context, strategy RetryStrategy, resp *Response, err error) bool {
	if strategy == nil || ctx.Err() != nil {
		return false
	}
	// Configuration failures never reach the network and are not retried
	if err != nil && !IsConnectionError(err) {
		return false
	}
	outcome := Outcome{Err: err}
	if resp != nil {
		outcome.Status = resp.Status
	}
	return strategy.ShouldRetry(outcome)
}

func (s *Service) finish(span oteltrace.Span, c *call, strategy RetryStrategy, start time.Time, attempts int, resp *Response, err error) (*Response, error) {
	retries := 0
	if strategy != nil {
		retries = strategy.RetryCount()
	}
	status := 0
	if resp != nil {
		status = resp.Status
		resp.Stats = Stats{
			ElapsedTime: time.Since(start),
			Attempts:    attempts,
			RequestID:   c.requestID,
		}
	}
	tracking.EndOperation(span, status, retries, err)

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("method", c.method).
			Str("url", c.url).
			Str("request_id", c.requestID).
			Int("attempts", attempts).
			Int("retries", retries).
			Msg("REST client request failed")
		return nil, err
	}
	return resp, nil
}

// attempt performs one HTTP exchange. Every resource it opens is released
// before it returns.
func (s *Service) attempt(ctx context.Context, c *call, number int) (*Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, NewConnectionError("rate limiter wait failed", err)
		}
	}

	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if c.timeouts.Total > 0 {
		var cancelTimeout context.CancelFunc
		attemptCtx, cancelTimeout = context.WithTimeoutCause(attemptCtx, c.timeouts.Total,
			NewTimeoutError(totalTimeoutMessage(c.timeouts.Total), context.DeadlineExceeded))
		defer cancelTimeout()
	}
	monitor := startStallMonitor(c.timeouts.LowSpeedLimit, c.timeouts.LowSpeedTime, cancel)
	defer monitor.stop()

	httpReq, err := s.buildRequest(attemptCtx, c, monitor)
	if err != nil {
		return nil, err
	}
	if err := s.runRequestInterceptors(attemptCtx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}
	s.logRequest(c, number)

	started := time.Now()
	client := &nethttp.Client{Transport: s.transport, CheckRedirect: checkRedirect}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		err = classifyTransportError(attemptCtx, err)
		s.track(ctx, c, 0, err, time.Since(started))
		return nil, err
	}
	defer httpResp.Body.Close()

	if err := s.runResponseInterceptors(attemptCtx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	data, err := io.ReadAll(monitor.wrapReader(httpResp.Body))
	if err != nil {
		err = classifyTransportError(attemptCtx, err)
		s.track(ctx, c, 0, err, time.Since(started))
		return nil, err
	}

	resp := &Response{
		Status:  httpResp.StatusCode,
		Headers: headersFromHTTP(httpResp.Header),
		Body:    data,
	}
	elapsed := time.Since(started)
	s.track(ctx, c, resp.Status, nil, elapsed)
	s.logResponse(c, resp, number, elapsed)
	return resp, nil
}

func (s *Service) buildRequest(ctx context.Context, c *call, monitor *stallMonitor) (*nethttp.Request, error) {
	httpReq, err := nethttp.NewRequestWithContext(ctx, c.method, c.url, nil)
	if err != nil {
		return nil, NewConfigurationError(fmt.Sprintf("failed to create HTTP request: %v", err))
	}

	if len(c.body.data) > 0 || carriesBody(c.method) {
		body := c.body
		httpReq.ContentLength = int64(len(body.data))
		httpReq.Body = monitor.wrapReader(body.reader())
		httpReq.GetBody = func() (io.ReadCloser, error) {
			return monitor.wrapReader(body.reader()), nil
		}
		if len(body.data) == 0 {
			httpReq.Body = nethttp.NoBody
			httpReq.GetBody = func() (io.ReadCloser, error) { return nethttp.NoBody, nil }
		}
	}

	c.auth.authenticate(httpReq)
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	if !c.headers.Has(headerContentType) && c.body.contentType != "" {
		httpReq.Header.Set(headerContentType, c.body.contentType)
	}
	if !c.headers.Has(headerUserAgent) {
		httpReq.Header.Set(headerUserAgent, s.userAgent)
	}
	if !c.headers.Has(trace.HeaderXRequestID) {
		httpReq.Header.Set(trace.HeaderXRequestID, c.requestID)
	}
	s.recorder.Inject(ctx, httpReq.Header)
	return httpReq, nil
}

// checkRedirect allows MaxRedirects hops; len(via) is the number of
// redirects already followed including the one about to be issued.
func checkRedirect(_ *nethttp.Request, via []*nethttp.Request) error {
	if len(via) > MaxRedirects {
		return NewConnectionError(fmt.Sprintf("Maximum (%d) redirects followed", MaxRedirects), nil)
	}
	return nil
}

// classifyTransportError maps a failed exchange to a *ConnectionError,
// preferring the timeout or stall cause recorded on the attempt context.
func classifyTransportError(attemptCtx context.Context, err error) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}
	if attemptCtx.Err() != nil {
		if errors.As(context.Cause(attemptCtx), &connErr) {
			return connErr
		}
		return NewConnectionError("request aborted", err)
	}
	return NewConnectionError("request failed", err)
}

// runRequestInterceptors executes all request interceptors
func (s *Service) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range s.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (s *Service) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range s.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

func retryReason(err error) string {
	if err != nil {
		return "transport"
	}
	return "status"
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) track(ctx context.Context, c *call, status int, err error, d time.Duration) {
	logger.IncrementRESTCounter(ctx)
	logger.AddRESTElapsed(ctx, d.Nanoseconds())

	errType := ""
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		errType = string(clientErr.Type())
		if IsTimeout(err) {
			errType = "timeout"
		}
	}
	s.recorder.RecordAttempt(ctx, c.method, status, errType, d)
}

func (s *Service) logRequest(c *call, attempt int) {
	logEvent := s.logger.Debug().
		Str("direction", "outbound").
		Str("method", c.method).
		Str("url", c.url).
		Str("request_id", c.requestID).
		Int("attempt", attempt)

	if len(c.headers) > 0 {
		logEvent.Interface("headers", map[string]string(c.headers))
	}

	logEvent.Msg("REST client request")
}

func (s *Service) logResponse(c *call, resp *Response, attempt int, elapsed time.Duration) {
	s.logger.Info().
		Str("direction", "inbound").
		Str("method", c.method).
		Str("url", c.url).
		Str("request_id", c.requestID).
		Int("status", resp.Status).
		Int("attempt", attempt).
		Int("body_size", len(resp.Body)).
		Dur("elapsed", elapsed).
		Msg("REST client response")
}

func (s *Service) logRetry(c *call, attempt int, wait time.Duration, resp *Response, err error) {
	logEvent := s.logger.Warn().
		Str("method", c.method).
		Str("url", c.url).
		Str("request_id", c.requestID).
		Int("attempt", attempt).
		Dur("wait", wait)

	if err != nil {
		logEvent.Err(err)
	}
	if resp != nil {
		logEvent.Int("status", resp.Status)
	}

	logEvent.Msg("REST client retrying request")
}
