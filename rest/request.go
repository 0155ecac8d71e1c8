package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
)

const (
	headerContentType = "Content-Type"
	headerUserAgent   = "User-Agent"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Request describes one logical REST operation. Path is resolved against the
// service base URL unless it is already absolute.
type Request struct {
	Method string
	Path   string
	// Body is nil, raw bytes ([]byte or string) or any value encoded as JSON.
	// json.RawMessage is sent verbatim as JSON.
	Body    any
	Headers Headers
	// Auth overrides the service-wide authentication when set
	Auth Authentication
}

var supportedMethods = map[string]struct{}{
	nethttp.MethodGet:    {},
	nethttp.MethodHead:   {},
	nethttp.MethodPost:   {},
	nethttp.MethodPut:    {},
	nethttp.MethodPatch:  {},
	nethttp.MethodDelete: {},
}

// carriesBody reports whether the method sends a body (possibly empty) with a
// form-urlencoded default content type.
func carriesBody(method string) bool {
	switch method {
	case nethttp.MethodPost, nethttp.MethodPut, nethttp.MethodPatch:
		return true
	}
	return false
}

func (r *Request) validate() error {
	if r == nil {
		return NewConfigurationError("request cannot be nil")
	}
	if _, ok := supportedMethods[r.Method]; !ok {
		return NewConfigurationError(fmt.Sprintf("unsupported HTTP method %q", r.Method))
	}
	return nil
}

// encodedBody is a request payload prepared once per logical operation and
// replayed on every attempt.
type encodedBody struct {
	data        []byte
	contentType string
}

func encodeBody(method string, body any) (encodedBody, error) {
	var out encodedBody
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		out.data = b
		out.contentType = contentTypeJSON
	case []byte:
		out.data = b
	case string:
		out.data = []byte(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return out, NewConfigurationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
		out.data = data
		out.contentType = contentTypeJSON
	}
	if out.contentType == "" && carriesBody(method) {
		out.contentType = contentTypeForm
	}
	return out, nil
}

// reader returns a fresh body reader for one attempt
func (b encodedBody) reader() io.ReadCloser {
	if len(b.data) == 0 {
		return nethttp.NoBody
	}
	return io.NopCloser(bytes.NewReader(b.data))
}

// resolveURL joins path onto base. Absolute URLs are returned unchanged.
func resolveURL(base *url.URL, path string) (string, error) {
	if path == "" {
		return base.String(), nil
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", NewConfigurationError(fmt.Sprintf("invalid request path %q: %v", path, err))
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	// Join the escaped forms so encoded separators such as %2F survive
	escaped := strings.TrimSuffix(base.EscapedPath(), "/") + "/" + strings.TrimPrefix(ref.EscapedPath(), "/")
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return "", NewConfigurationError(fmt.Sprintf("invalid request path %q: %v", path, err))
	}
	joined := *base
	joined.Path = decoded
	joined.RawPath = escaped
	joined.RawQuery = ref.RawQuery
	joined.Fragment = ""
	return joined.String(), nil
}
