package rest

import (
	"errors"
	"fmt"
)

// ClientError represents the categories of failures surfaced by the REST engine
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	// ConnectionErrorType covers every transport-level failure: resolution, refusal,
	// TLS, timeouts, stalls and redirect-limit violations.
	ConnectionErrorType ErrorType = "connection"
	// ConfigurationErrorType covers misconfigured collaborators detected before any I/O.
	ConfigurationErrorType ErrorType = "configuration"
	// InterceptorErrorType covers failures returned by request or response interceptors.
	InterceptorErrorType ErrorType = "interceptor"
)

// ErrTypeMismatch is returned when a JSON value is queried as the wrong shape
var ErrTypeMismatch = errors.New("type mismatch")

const msgMissingStopCriteria = "A stop criteria must be defined to avoid infinite retries."

// ConnectionError is a transport-level failure. No Response exists when it is returned.
type ConnectionError struct {
	message string
	timeout bool
	wrapped error
}

func (e *ConnectionError) Error() string {
	if e.wrapped != nil && !e.timeout {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ConnectionError) Type() ErrorType {
	return ConnectionErrorType
}

func (e *ConnectionError) Unwrap() error {
	return e.wrapped
}

// Timeout reports whether the failure came from the total-time ceiling or the stall detector
func (e *ConnectionError) Timeout() bool {
	return e.timeout
}

// ConfigurationError reports an unusable configuration, raised before any network activity
type ConfigurationError struct {
	message string
}

func (e *ConfigurationError) Error() string {
	return e.message
}

func (e *ConfigurationError) Type() ErrorType {
	return ConfigurationErrorType
}

// interceptorError wraps an error returned by an interceptor. It is never retried.
type interceptorError struct {
	message string
	stage   string
	wrapped error
}

func (e *interceptorError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s (%s): %v", e.message, e.stage, e.wrapped)
	}
	return fmt.Sprintf("%s (%s)", e.message, e.stage)
}

func (e *interceptorError) Type() ErrorType {
	return InterceptorErrorType
}

func (e *interceptorError) Unwrap() error {
	return e.wrapped
}

// NewConnectionError creates a new connection error
func NewConnectionError(message string, wrapped error) ClientError {
	return &ConnectionError{message: message, wrapped: wrapped}
}

// NewTimeoutError creates a connection error flagged as a timeout
func NewTimeoutError(message string, wrapped error) ClientError {
	return &ConnectionError{message: message, timeout: true, wrapped: wrapped}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string) ClientError {
	return &ConfigurationError{message: message}
}

// NewInterceptorError creates a new interceptor error; stage is "request" or "response"
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{message: message, stage: stage, wrapped: wrapped}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsConnectionError reports whether err is a transport-level failure
func IsConnectionError(err error) bool {
	return IsErrorType(err, ConnectionErrorType)
}

// IsConfigurationError reports whether err is a configuration failure
func IsConfigurationError(err error) bool {
	return IsErrorType(err, ConfigurationErrorType)
}

// IsTimeout reports whether err is a timeout-flavoured connection error
func IsTimeout(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Timeout()
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsServerErrorStatus checks if a status code is in the 5xx class
func IsServerErrorStatus(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600
}
