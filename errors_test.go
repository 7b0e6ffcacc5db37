package restkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{400, ErrorTypeValidation},
		{401, ErrorTypeAuthentication},
		{403, ErrorTypeAuthorization},
		{404, ErrorTypeClient},
		{409, ErrorTypeClient},
		{429, ErrorTypeClient},
		{500, ErrorTypeServer},
		{502, ErrorTypeServer},
		{503, ErrorTypeServer},
		{300, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		ce := classifyStatus(tt.status, "Some Status")
		if ce.Type != tt.want {
			t.Errorf("status %d: got %s, want %s", tt.status, ce.Type, tt.want)
		}
		if ce.StatusCode != tt.status {
			t.Errorf("status %d not echoed, got %d", tt.status, ce.StatusCode)
		}
		wantMsg := fmt.Sprintf("HTTP %d: Some Status", tt.status)
		if ce.Message != wantMsg {
			t.Errorf("message %q, want %q", ce.Message, wantMsg)
		}
	}
}

func TestClassifyTransportError(t *testing.T) {
	background := context.Background()

	cancelled, cancel := context.WithCancel(background)
	cancel()
	ce := classifyTransportError(cancelled, cancelled, context.Canceled)
	if ce.Type != ErrorTypeAbort {
		t.Errorf("cancelled parent: got %s, want %s", ce.Type, ErrorTypeAbort)
	}
	if !ce.IsAbortError() {
		t.Error("IsAbortError should be true")
	}

	expired, cancel2 := context.WithDeadline(background, time.Now().Add(-time.Second))
	defer cancel2()
	ce = classifyTransportError(background, expired, context.DeadlineExceeded)
	if ce.Type != ErrorTypeTimeout {
		t.Errorf("expired dispatch: got %s, want %s", ce.Type, ErrorTypeTimeout)
	}

	netErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	ce = classifyTransportError(background, background, netErr)
	if ce.Type != ErrorTypeNetwork {
		t.Errorf("net error: got %s, want %s", ce.Type, ErrorTypeNetwork)
	}
	if !errors.Is(ce, netErr) {
		t.Error("cause should be preserved")
	}

	ce = classifyTransportError(background, background, errors.New("mystery"))
	if ce.Type != ErrorTypeUnknown {
		t.Errorf("unknown error: got %s, want %s", ce.Type, ErrorTypeUnknown)
	}
}

func TestClientErrorIs(t *testing.T) {
	err := &ClientError{Type: ErrorTypeRateLimit, Message: "rate limit exceeded"}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("should match ErrRateLimited sentinel")
	}
	if errors.Is(err, ErrCircuitOpen) {
		t.Error("should not match ErrCircuitOpen")
	}
	if !errors.Is(err, &ClientError{Type: ErrorTypeRateLimit}) {
		t.Error("should match same-typed ClientError")
	}

	queueErr := &ClientError{Type: ErrorTypeQueueFull}
	if !errors.Is(queueErr, ErrQueueFull) {
		t.Error("should match ErrQueueFull sentinel")
	}
	clearedErr := &ClientError{Type: ErrorTypeQueueCleared}
	if !errors.Is(clearedErr, ErrQueueCleared) {
		t.Error("should match ErrQueueCleared sentinel")
	}
}

func TestClientErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := &ClientError{
		Type:       ErrorTypeServer,
		Message:    "HTTP 500: Internal Server Error",
		Cause:      cause,
		RequestID:  "req-7",
		Attempt:    2,
		MaxRetries: 3,
	}

	msg := err.Error()
	for _, want := range []string{"Server", "HTTP 500", "boom", "req-7", "attempt 2/3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should reach the cause")
	}

	info := err.DebugInfo()
	if !strings.Contains(info, "Error Type: Server") {
		t.Errorf("DebugInfo missing type: %s", info)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&ClientError{Type: ErrorTypeNetwork}, true},
		{&ClientError{Type: ErrorTypeTimeout}, true},
		{&ClientError{Type: ErrorTypeServer}, true},
		{&ClientError{Type: ErrorTypeValidation}, false},
		{&ClientError{Type: ErrorTypeAuthentication}, false},
		{&ClientError{Type: ErrorTypeClient}, false},
		{&ClientError{Type: ErrorTypeAbort}, false},
		{&ClientError{Type: ErrorTypeRateLimit}, false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
