package rest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterceptors(t *testing.T) {
	var seenStatus int
	reqInterceptor := func(_ context.Context, req *http.Request) error {
		req.Header.Set("X-Intercepted", "true")
		return nil
	}
	respInterceptor := func(_ context.Context, _ *http.Request, resp *http.Response) error {
		seenStatus = resp.StatusCode
		return nil
	}

	svc, _, _ := startHarness(t,
		WithRequestInterceptor(reqInterceptor),
		WithResponseInterceptor(respInterceptor),
	)

	resp, err := svc.Get(context.Background(), "/get", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, seenStatus)

	v, ok := echoHeader(t, resp, "x-intercepted")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestBuilderInterceptors(t *testing.T) {
	_, _, ts := startHarness(t)

	calls := 0
	svc := NewBuilder(ts.URL, nil).
		WithRequestInterceptor(func(_ context.Context, req *http.Request) error {
			calls++
			req.Header.Set("Accept", "application/json")
			return nil
		}).
		WithResponseInterceptor(func(_ context.Context, _ *http.Request, _ *http.Response) error {
			calls++
			return nil
		}).
		Build()

	resp, err := svc.Get(context.Background(), "/get", Headers{"Accept": "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	v, _ := echoHeader(t, resp, "accept")
	assert.Equal(t, "application/json", v)
}

func TestRequestInterceptorErrorAbortsWithoutRetry(t *testing.T) {
	boom := errors.New("signing failed")
	svc, srv, _ := startHarness(t, WithRequestInterceptor(func(context.Context, *http.Request) error {
		return boom
	}))

	retry := NewFixedRetry(time.Millisecond)
	retry.SetMaxAttempts(3)

	_, err := svc.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/get"}, retry)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, InterceptorErrorType))
	assert.False(t, IsConnectionError(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "request interceptor failed (request): signing failed", err.Error())
	assert.Zero(t, retry.RetryCount())
	assert.Zero(t, srv.Requests())
}

func TestResponseInterceptorErrorDiscardsResponse(t *testing.T) {
	rejected := errors.New("unexpected status")
	svc, srv, _ := startHarness(t, WithResponseInterceptor(func(_ context.Context, _ *http.Request, resp *http.Response) error {
		if resp.StatusCode >= http.StatusInternalServerError {
			return rejected
		}
		return nil
	}))

	resp, err := svc.Get(context.Background(), "/server_error/503", nil)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsErrorType(err, InterceptorErrorType))
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, int64(1), srv.Requests())

	resp, err = svc.Get(context.Background(), "/get", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}
