package rest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Response is the result of one completed HTTP exchange. It is not modified
// after being returned; only the JSON view is computed on demand.
type Response struct {
	Status  int
	Headers Headers
	Body    []byte
	Stats   Stats

	jsonOnce  sync.Once
	jsonValue Value
	jsonErr   error
}

// Stats contains execution statistics for the logical operation that produced
// the response.
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
	RequestID   string
}

// IsJSONContentType reports whether a Content-Type value carries JSON. The
// check is permissive: any media type mentioning "json" qualifies.
func IsJSONContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}

// JSON parses the body on first use and memoises the result. Non-JSON and
// empty bodies yield Undefined with a nil error; malformed JSON yields
// Undefined and the parse error.
func (r *Response) JSON() (Value, error) {
	r.jsonOnce.Do(func() {
		if len(r.Body) == 0 || !IsJSONContentType(r.Headers.Get("Content-Type")) {
			r.jsonValue = Undefined
			return
		}
		r.jsonValue, r.jsonErr = ParseJSON(r.Body)
	})
	return r.jsonValue, r.jsonErr
}

// Decode unmarshals the body into out
func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("cannot decode empty body (status %d)", r.Status)
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Header returns a response header value using a case-insensitive lookup
func (r *Response) Header(key string) string {
	return r.Headers.Get(key)
}

// IsSuccess reports whether the status is 2xx
func (r *Response) IsSuccess() bool {
	return IsSuccessStatus(r.Status)
}
