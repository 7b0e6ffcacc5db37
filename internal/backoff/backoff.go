// Package backoff centralizes retry delay calculation behind a small
// strategy interface.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay before a given retry attempt.
type Strategy interface {
	// Calculate returns the backoff duration for attempt (0-based) given
	// the base delay, cap, growth multiplier and jitter fraction [0,1].
	Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration
}

// Exponential grows the delay geometrically (initial * multiplier^attempt),
// capped at max, with optional uniform jitter on top.
type Exponential struct{}

// Calculate implements Strategy.
func (Exponential) Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Limit the exponent to keep the float math from overflowing.
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(initial) * Pow(multiplier, attempt))
	if delay < 0 || delay > max {
		delay = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+extra > max {
			delay = max
		} else {
			delay += extra
		}
	}
	return delay
}

// Decorrelated implements AWS-style decorrelated jitter: a random delay
// between the base and min(cap, base * 3^attempt). It spreads retry storms
// more evenly than plain exponential jitter.
type Decorrelated struct{}

// Calculate implements Strategy.
func (Decorrelated) Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initial)
	upper := base * Pow(3.0, attempt)
	maxFloat := float64(max)
	if upper > maxFloat || upper < 0 {
		upper = maxFloat
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

// Calculator pairs a strategy with a convenient call site.
type Calculator struct {
	strategy Strategy
}

// NewCalculator wraps a strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{strategy: strategy}
}

// Calculate delegates to the configured strategy.
func (c *Calculator) Calculate(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	return c.strategy.Calculate(attempt, initial, max, multiplier, jitter)
}

// Pow is integer-exponent float exponentiation without math.Pow.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

func clampJitter(j float64) float64 {
	if j < 0 {
		return 0
	}
	if j > 1 {
		return 1
	}
	return j
}
