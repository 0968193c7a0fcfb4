package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to apply after the given failed attempt
	NextDelay(attempt int) time.Duration
	// Reset resets the backoff strategy to initial state
	Reset()
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0 to 1.0
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	return jitter(capDelay(delay, eb.MaxDelay), eb.JitterFactor)
}

func (eb *ExponentialBackoff) Reset() {}

// LinearBackoff grows the delay by Increment per attempt
type LinearBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
}

func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	return jitter(capDelay(delay, lb.MaxDelay), lb.JitterFactor)
}

func (lb *LinearBackoff) Reset() {}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

func (cb *ConstantBackoff) Reset() {}

// NewBackoff builds a strategy by name: "constant", "linear" or "exponential".
func NewBackoff(strategy string, base, max time.Duration, multiplier, jitterFactor float64) (BackoffStrategy, error) {
	switch strategy {
	case "constant":
		return &ConstantBackoff{Delay: base}, nil
	case "linear":
		return &LinearBackoff{BaseDelay: base, MaxDelay: max, Increment: base, JitterFactor: jitterFactor}, nil
	case "exponential", "":
		return &ExponentialBackoff{BaseDelay: base, MaxDelay: max, Multiplier: multiplier, JitterFactor: jitterFactor}, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q", strategy)
	}
}

func capDelay(delay float64, max time.Duration) float64 {
	if max > 0 && delay > float64(max) {
		return float64(max)
	}
	return delay
}

func jitter(delay, factor float64) time.Duration {
	if factor > 0 {
		j := delay * factor
		delay += (rand.Float64() * 2 * j) - j
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
