package backoff

import (
	"testing"
	"time"
)

func TestExponentialGrowth(t *testing.T) {
	var s Exponential

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped
		{50, 30 * time.Second}, // exponent clamp, still capped
	}
	for _, tt := range tests {
		got := s.Calculate(tt.attempt, time.Second, 30*time.Second, 2.0, 0)
		if got != tt.want {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialNegativeAttempt(t *testing.T) {
	var s Exponential
	if got := s.Calculate(-3, time.Second, 30*time.Second, 2.0, 0); got != time.Second {
		t.Errorf("negative attempt should behave like zero, got %v", got)
	}
}

func TestExponentialJitterBounds(t *testing.T) {
	var s Exponential
	for i := 0; i < 100; i++ {
		got := s.Calculate(2, time.Second, 30*time.Second, 2.0, 0.5)
		if got < 4*time.Second || got > 6*time.Second {
			t.Fatalf("jittered delay out of bounds: %v", got)
		}
	}
}

func TestExponentialJitterClamped(t *testing.T) {
	var s Exponential
	for i := 0; i < 50; i++ {
		got := s.Calculate(0, time.Second, 30*time.Second, 2.0, 5.0)
		if got < time.Second || got > 2*time.Second {
			t.Fatalf("jitter should clamp to 1.0, got %v", got)
		}
	}
}

func TestDecorrelatedBounds(t *testing.T) {
	var s Decorrelated

	if got := s.Calculate(0, time.Second, 30*time.Second, 2.0, 0); got != time.Second {
		t.Errorf("attempt 0 should return the base, got %v", got)
	}
	for attempt := 1; attempt < 6; attempt++ {
		for i := 0; i < 50; i++ {
			got := s.Calculate(attempt, time.Second, 30*time.Second, 2.0, 0)
			if got < time.Second || got > 30*time.Second {
				t.Fatalf("attempt %d: delay out of bounds: %v", attempt, got)
			}
		}
	}
}

func TestCalculatorDelegates(t *testing.T) {
	calc := NewCalculator(Exponential{})
	if got := calc.Calculate(1, time.Second, 30*time.Second, 2.0, 0); got != 2*time.Second {
		t.Errorf("calculator should delegate, got %v", got)
	}
}

func TestPow(t *testing.T) {
	tests := []struct {
		base     float64
		exponent int
		want     float64
	}{
		{2, 0, 1},
		{2, 3, 8},
		{3, 2, 9},
		{1.5, 2, 2.25},
	}
	for _, tt := range tests {
		if got := Pow(tt.base, tt.exponent); got != tt.want {
			t.Errorf("Pow(%v, %d) = %v, want %v", tt.base, tt.exponent, got, tt.want)
		}
	}
}
