package rest

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/restbricks/logger"
	"github.com/gaborage/restbricks/testing/restserver"
)

func TestLogsRequestAndResponse(t *testing.T) {
	_, ts := restserver.Start(t)
	log := &fakeLogger{}
	svc := NewService(ts.URL, false, log)

	_, err := svc.Get(context.Background(), "/get", Headers{"X-Trace": "1"})
	require.NoError(t, err)

	requests := log.byMessage(testRestClientRequest)
	require.Len(t, requests, 1)
	assert.Equal(t, "debug", requests[0].level)
	assert.Equal(t, http.MethodGet, requests[0].fields["method"])
	assert.Equal(t, "outbound", requests[0].fields["direction"])
	assert.Equal(t, map[string]string{"X-Trace": "1"}, requests[0].fields["headers"])

	responses := log.byMessage(testRestClientResponse)
	require.Len(t, responses, 1)
	assert.Equal(t, "info", responses[0].level)
	assert.Equal(t, http.StatusOK, responses[0].fields["status"])
	assert.Equal(t, 1, responses[0].fields["attempt"])
}

func TestLogsRetriesAndFailures(t *testing.T) {
	_, ts := restserver.Start(t)
	log := &fakeLogger{}
	svc := NewService(ts.URL, false, log)
	ts.Close()

	retry := NewFixedRetry(time.Millisecond)
	retry.SetMaxAttempts(2)
	_, err := svc.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/get"}, retry)
	require.Error(t, err)

	retries := log.byMessage(testRestClientRetry)
	require.Len(t, retries, 2)
	assert.Equal(t, "warn", retries[0].level)
	assert.Equal(t, time.Millisecond, retries[0].fields["wait"])

	failures := log.byMessage(testRestClientFailed)
	require.Len(t, failures, 1)
	assert.Equal(t, "error", failures[0].level)
	assert.Equal(t, 3, failures[0].fields["attempts"])
	assert.Equal(t, 2, failures[0].fields["retries"])
}

func TestLoggedHeadersAreMasked(t *testing.T) {
	_, ts := restserver.Start(t)
	var buf bytes.Buffer
	svc := NewService(ts.URL, false, logger.NewWithWriter("debug", &buf, nil))

	_, err := svc.Get(context.Background(), "/get", Headers{"Authorization": "Bearer secret-token"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, testRestClientRequest)
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, logger.DefaultMaskValue)
}
