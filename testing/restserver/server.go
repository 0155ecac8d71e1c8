// Package restserver provides an echo-based HTTP server exposing the endpoints
// REST client tests exercise: method echo, header reflection, redirects,
// basic authentication, slow responses and arbitrary statuses.
package restserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "restserver"

// Server is the test harness. Handler is safe for concurrent use.
type Server struct {
	echo     *echo.Echo
	requests atomic.Int64
}

type options struct {
	tracerProvider trace.TracerProvider
}

// Option configures a Server
type Option func(*options)

// WithTracing extracts incoming W3C trace context and records server spans
// with tp.
func WithTracing(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// New creates the harness with every endpoint registered
func New(opts ...Option) *Server {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e}
	e.Use(s.countRequests)
	if o.tracerProvider != nil {
		e.Use(otelecho.Middleware(serviceName,
			otelecho.WithTracerProvider(o.tracerProvider),
			otelecho.WithPropagators(propagation.TraceContext{}),
		))
	}

	e.GET("/ping", ping)
	e.Any("/headers", reflectHeaders)
	e.Any("/redirect/:n", redirect)
	e.Any("/basic/:user/:password", basicAuth)
	e.Any("/timeout/:seconds", slow)
	e.Any("/server_error/:code", status)
	e.Any("/*", echoRequest)

	return s
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Requests is the number of requests served since creation or the last reset
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// ResetRequests zeroes the request counter
func (s *Server) ResetRequests() {
	s.requests.Store(0)
}

func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.requests.Add(1)
		return next(c)
	}
}

// Start serves a new harness on an IPv4 loopback listener until the test ends
func Start(t testing.TB, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts...)
	ts := &httptest.Server{
		Listener: listenIPv4(t),
		Config:   &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return s, ts
}

// StartTLS is Start with a self-signed TLS certificate
func StartTLS(t testing.TB, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts...)
	ts := &httptest.Server{
		Listener: listenIPv4(t),
		Config:   &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second},
	}
	ts.StartTLS()
	t.Cleanup(ts.Close)
	return s, ts
}

func listenIPv4(t testing.TB) net.Listener {
	t.Helper()
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind IPv4 listener: %v", err)
	}
	return listener
}

// Echo is the document returned by the method echo endpoints
type Echo struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	JSON    json.RawMessage   `json:"json"`
	Body    string            `json:"body"`
}

func describe(c echo.Context) (*Echo, error) {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(req.Header)+1)
	for k, v := range req.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	if req.Host != "" {
		headers["host"] = req.Host
	}

	doc := &Echo{
		Method:  req.Method,
		Path:    req.URL.Path,
		Headers: headers,
		JSON:    json.RawMessage("null"),
		Body:    string(body),
	}
	if len(body) > 0 && json.Valid(body) {
		doc.JSON = body
	}
	return doc, nil
}

func echoRequest(c echo.Context) error {
	doc, err := describe(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// reflectHeaders sets every query parameter as a response header. The body
// is the parameters as JSON, served with the requested Content-Type if any.
func reflectHeaders(c echo.Context) error {
	params := c.QueryParams()
	doc := make(map[string]string, len(params))
	for k, values := range params {
		value := strings.Join(values, ", ")
		doc[k] = value
		c.Response().Header().Set(k, value)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	contentType := c.Response().Header().Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func redirect(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid redirect count")
	}
	if n == 0 {
		return echoRequest(c)
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf("/redirect/%d", n-1))
}

func basicAuth(c echo.Context) error {
	user, password, ok := c.Request().BasicAuth()
	if ok && user == c.Param("user") && password == c.Param("password") {
		return c.JSON(http.StatusOK, map[string]string{"authentication": "OK"})
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"authentication": "NO"})
}

// slow waits the given number of seconds (fractions allowed) before echoing
func slow(c echo.Context) error {
	seconds, err := strconv.ParseFloat(c.Param("seconds"), 64)
	if err != nil || seconds < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid timeout")
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-c.Request().Context().Done():
		return nil
	case <-timer.C:
	}
	return echoRequest(c)
}

func status(c echo.Context) error {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil || code < 100 || code > 599 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status code")
	}
	return c.JSON(code, map[string]int{"code": code})
}
