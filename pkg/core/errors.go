package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorType represents the category of an API error.
type ErrorType int

// Error type constants categorize errors so callers can decide whether to retry.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit indicates the rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates invalid, expired or stale credentials.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
	}[t]
}

// ErrorTypeFromStatus classifies an HTTP status code.
func ErrorTypeFromStatus(status int) ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuthentication
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status >= 500:
		return ErrorTypeServerError
	case status >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

// Sentinel errors for common error conditions.
var (
	// ErrMissingCredentials matches any *MissingCredentialsError via errors.Is.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNotConnected is returned when the websocket is not connected.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrCircuitBreakerOpen is returned when the circuit breaker rejects a call.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// MissingCredentialsError is returned before any network call when the API key
// or secret is absent. It is fatal and must not be retried.
type MissingCredentialsError struct {
	Missing []string
}

func (e *MissingCredentialsError) Error() string {
	return "missing credentials: " + strings.Join(e.Missing, ", ")
}

// Is makes errors.Is(err, ErrMissingCredentials) hold.
func (e *MissingCredentialsError) Is(target error) bool {
	return target == ErrMissingCredentials
}

// SerializationError is returned when a payload cannot be encoded as JSON.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize payload: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// APIError represents a non-2xx response from the exchange.
// Body holds the response bytes exactly as received.
type APIError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response.
	StatusCode int `json:"status_code"`
	// Body is the raw response body.
	Body []byte `json:"body"`
	// Code is the exchange-specific error code, when the body carried one.
	Code string `json:"code,omitempty"`
	// Message is the exchange error message, when the body carried one.
	Message string `json:"message,omitempty"`
	// Method and Path identify the failed call.
	Method string `json:"method"`
	Path   string `json:"path"`
	// Timestamp is when the error was received.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Body)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s (%d/%s): %s", e.Method, e.Path, e.Type, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s %s: %s (%d): %s", e.Method, e.Path, e.Type, e.StatusCode, msg)
}

// NewAPIError creates an APIError for the given status and body.
// The type is derived from the status code and the timestamp set to now.
func NewAPIError(method, path string, statusCode int, body []byte) *APIError {
	return &APIError{
		Type:       ErrorTypeFromStatus(statusCode),
		StatusCode: statusCode,
		Body:       body,
		Method:     method,
		Path:       path,
		Timestamp:  time.Now(),
	}
}

// ConnectionError is a transport-level failure. It is surfaced as is and never
// followed by an automatic reconnect.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func apiErrorType(err error) (ErrorType, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type, true
	}
	return ErrorTypeUnknown, false
}

// IsRateLimitError returns true if the error is a rate limit violation.
func IsRateLimitError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeRateLimit
}

// IsAuthenticationError returns true if the error is an authentication failure.
// A stale timestamp is reported by the exchange as an authentication failure.
func IsAuthenticationError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeAuthentication
}

// IsNotFoundError returns true if the requested resource does not exist.
func IsNotFoundError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeNotFound
}

// IsServerError returns true for 5xx responses.
func IsServerError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeServerError
}

// IsConnectionError returns true if the error is a transport failure.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsTerminalError returns true for errors that will not succeed on retry.
func IsTerminalError(err error) bool {
	if errors.Is(err, ErrMissingCredentials) {
		return true
	}
	var serErr *SerializationError
	if errors.As(err, &serErr) {
		return true
	}
	t, ok := apiErrorType(err)
	return ok && (t == ErrorTypeAuthentication || t == ErrorTypeBadRequest || t == ErrorTypeNotFound)
}
