package restserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestEchoEndpoint(t *testing.T) {
	s := New()
	req := httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"k":1}`))
	req.Header.Set("X-Custom", "value")

	rec := serve(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc Echo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, http.MethodPost, doc.Method)
	assert.Equal(t, "/post", doc.Path)
	assert.Equal(t, "value", doc.Headers["x-custom"])
	assert.JSONEq(t, `{"k":1}`, string(doc.JSON))
	assert.Equal(t, int64(1), s.Requests())

	s.ResetRequests()
	assert.Zero(t, s.Requests())
}

func TestReflectHeaders(t *testing.T) {
	s := New()
	req := httptest.NewRequest(http.MethodGet, "/headers?Content-Type=text/plain&X-Empty=", http.NoBody)

	rec := serve(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	values, ok := rec.Header()["X-Empty"]
	require.True(t, ok)
	assert.Equal(t, []string{""}, values)
}

func TestRedirectChain(t *testing.T) {
	s := New()

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/redirect/3", http.NoBody))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/redirect/2", rec.Header().Get("Location"))

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/redirect/0", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s := New()

	req := httptest.NewRequest(http.MethodGet, "/basic/user/pass", http.NoBody)
	req.SetBasicAuth("user", "pass")
	rec := serve(t, s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authentication":"OK"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/basic/user/pass", http.NoBody)
	req.SetBasicAuth("user", "wrong")
	rec = serve(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"authentication":"NO"}`, rec.Body.String())
}

func TestServerErrorStatus(t *testing.T) {
	s := New()

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, "/server_error/503", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/server_error/abc", http.NoBody))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlowEndpointHonoursCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/timeout/10", http.NoBody).WithContext(ctx)
	rec := serve(t, s, req)
	assert.Empty(t, rec.Body.String())
}

func TestStartServesOverNetwork(t *testing.T) {
	s, ts := Start(t)

	resp, err := ts.Client().Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, int64(1), s.Requests())
}

func TestWithTracingExtractsParent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := New(WithTracing(tp))
	req := httptest.NewRequest(http.MethodGet, "/get", http.NoBody)
	parent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	req.Header.Set("traceparent", parent)
	serve(t, s, req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())

	carrier := propagation.HeaderCarrier(req.Header)
	assert.Equal(t, parent, carrier.Get("traceparent"))
}
