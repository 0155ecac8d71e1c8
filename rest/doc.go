// Package rest executes HTTP(S) requests against REST endpoints.
//
// A Service is bound to one base URL and carries default headers, an
// authentication strategy and per-attempt timeouts. Every entry point runs
// through Service.Do, which issues the request, follows up to MaxRedirects
// redirects and, when given a RetryStrategy, re-issues the request while the
// strategy allows it.
//
// HTTP statuses are data: a 500 is returned as a Response. Transport failures,
// including timeouts and redirect-limit violations, are returned as
// *ConnectionError. A RetryStrategy without stop criteria is rejected with a
// *ConfigurationError before any request is sent.
//
// Basic usage:
//
//	svc := rest.NewService("https://api.example.com", true, log)
//	resp, err := svc.Get(ctx, "/items", nil)
//
//	retry := rest.NewExponentialBackoffRetry(time.Second, 2, 4*time.Second)
//	retry.SetMaxElapsedTime(12 * time.Second)
//	resp, err = svc.Do(ctx, &rest.Request{Method: http.MethodGet, Path: "/items"}, retry)
package rest
