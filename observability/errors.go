package observability

import "errors"

// ErrInvalidProtocol is returned when an exporter protocol is not "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrMissingEndpoint is returned when an enabled exporter has no endpoint.
var ErrMissingEndpoint = errors.New("observability: exporter endpoint is required")
