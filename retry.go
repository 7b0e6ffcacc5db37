package restkit

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ambiyansyah-risyal/restkit/internal/backoff"
)

// RetryPolicy decides whether a failed attempt is retried and after what
// delay. The error is always the classified *ClientError produced by the
// dispatch; HTTP-status failures carry the partial response.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) (time.Duration, bool)
}

// DefaultRetryPolicy retries network errors, timeouts and 5xx responses
// with capped exponential backoff; a Retry-After header on a 5xx response
// overrides the computed delay. 4xx responses and aborts fail fast.
type DefaultRetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64

	calc *backoff.Calculator
}

// NewDefaultRetryPolicy builds the standard policy: delay is
// min(baseDelay * 2^attempt, maxDelay) with no jitter.
func NewDefaultRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *DefaultRetryPolicy {
	return &DefaultRetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: 2.0,
		calc:       backoff.NewCalculator(backoff.Exponential{}),
	}
}

// ShouldRetry implements RetryPolicy.
func (p *DefaultRetryPolicy) ShouldRetry(err error, attempt int) (time.Duration, bool) {
	if attempt >= p.MaxRetries {
		return 0, false
	}
	if !IsRetryable(err) {
		return 0, false
	}

	var delay time.Duration
	var ce *ClientError
	if errors.As(err, &ce) && ce.Response != nil {
		delay = parseRetryAfter(ce.Response.Header.Get("Retry-After"))
	}
	if delay == 0 {
		delay = p.backoff(attempt)
	}
	return delay, true
}

func (p *DefaultRetryPolicy) backoff(attempt int) time.Duration {
	calc := p.calc
	if calc == nil {
		calc = backoff.NewCalculator(backoff.Exponential{})
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return calc.Calculate(attempt, p.BaseDelay, p.MaxDelay, multiplier, p.Jitter)
}

// parseRetryAfter parses a Retry-After value in either delay-seconds or
// HTTP-date form, capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}
	return 0
}
