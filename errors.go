package restkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Error type classifications. Exactly one dominates per failure; the type
// decides retry eligibility.
const (
	ErrorTypeNetwork        = "Network"
	ErrorTypeTimeout        = "Timeout"
	ErrorTypeAbort          = "Abort"
	ErrorTypeValidation     = "Validation"     // HTTP 400
	ErrorTypeAuthentication = "Authentication" // HTTP 401
	ErrorTypeAuthorization  = "Authorization"  // HTTP 403
	ErrorTypeClient         = "Client"         // other 4xx
	ErrorTypeServer         = "Server"         // >= 500
	ErrorTypeUnknown        = "Unknown"
	ErrorTypeRateLimit      = "RateLimit"
	ErrorTypeCircuitOpen    = "CircuitOpen"
	ErrorTypeQueueFull      = "QueueFull"
	ErrorTypeQueueCleared   = "QueueCleared"
	ErrorTypeConfig         = "Config"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrCircuitOpen is returned when the circuit breaker is in open state.
	ErrCircuitOpen = errors.New("restkit: circuit open")

	// ErrRateLimited is returned when a request is denied due to rate limiting.
	ErrRateLimited = errors.New("restkit: rate limited")

	// ErrQueueFull is returned when an admission queue is at capacity.
	ErrQueueFull = errors.New("restkit: queue full")

	// ErrQueueCleared is returned to queued requests failed by Clear.
	ErrQueueCleared = errors.New("restkit: queue cleared")
)

// ClientError is the unified failure representation. Every failure
// originating inside the client surfaces as one of these; only errors from
// caller-supplied interceptors or token providers propagate as-is.
type ClientError struct {
	Type       string
	Message    string
	StatusCode int
	Cause      error

	// Response echoes the partial response for HTTP-status failures.
	Response *Response
	// Request is the logical request that produced the failure.
	Request *Request

	RequestID  string
	Method     string
	URL        string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	switch target {
	case ErrCircuitOpen:
		return e.Type == ErrorTypeCircuitOpen
	case ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ErrQueueFull:
		return e.Type == ErrorTypeQueueFull
	case ErrQueueCleared:
		return e.Type == ErrorTypeQueueCleared
	}
	return false
}

// IsNetworkError reports whether the failure is a transport connectivity problem.
func (e *ClientError) IsNetworkError() bool { return e != nil && e.Type == ErrorTypeNetwork }

// IsTimeoutError reports whether the internal deadline was exceeded.
func (e *ClientError) IsTimeoutError() bool { return e != nil && e.Type == ErrorTypeTimeout }

// IsAbortError reports whether the caller cancelled the request.
func (e *ClientError) IsAbortError() bool { return e != nil && e.Type == ErrorTypeAbort }

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// classifyStatus maps an HTTP status to a ClientError. Pure function of
// (status, statusText); stable regardless of call order.
func classifyStatus(status int, statusText string) *ClientError {
	var errType string
	switch {
	case status == 400:
		errType = ErrorTypeValidation
	case status == 401:
		errType = ErrorTypeAuthentication
	case status == 403:
		errType = ErrorTypeAuthorization
	case status >= 400 && status < 500:
		errType = ErrorTypeClient
	case status >= 500:
		errType = ErrorTypeServer
	default:
		errType = ErrorTypeUnknown
	}
	return &ClientError{
		Type:       errType,
		Message:    fmt.Sprintf("HTTP %d: %s", status, statusText),
		StatusCode: status,
		Timestamp:  time.Now(),
	}
}

// classifyTransportError maps a transport-level failure to a ClientError.
// The abort-vs-timeout distinction depends on which context fired: an
// expired internal deadline is a timeout, a cancelled caller context is a
// user abort.
func classifyTransportError(parent, dispatch context.Context, err error) *ClientError {
	ce := &ClientError{Cause: err, Timestamp: time.Now()}

	switch {
	case parent.Err() == context.Canceled:
		ce.Type = ErrorTypeAbort
		ce.Message = "request aborted by user"
	case dispatch.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded):
		ce.Type = ErrorTypeTimeout
		ce.Message = "request timeout"
	case isNetworkError(err):
		ce.Type = ErrorTypeNetwork
		ce.Message = "network request failed"
	default:
		ce.Type = ErrorTypeUnknown
		ce.Message = err.Error()
	}
	return ce
}

// isNetworkError reports whether err indicates a connectivity problem.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRetryable reports whether the failure might succeed on retry: network
// errors, timeouts and 5xx responses. Client errors (all of 4xx) and aborts
// fail fast.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer:
			return true
		default:
			return false
		}
	}
	return false
}
