package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "rednote/pkg/errors"
	"rednote/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestLinearAndConstantBackoff(t *testing.T) {
	linear := &LinearBackoff{BaseDelay: time.Second, Increment: time.Second, MaxDelay: 3 * time.Second}
	assert.Equal(t, 1*time.Second, linear.NextDelay(1))
	assert.Equal(t, 2*time.Second, linear.NextDelay(2))
	assert.Equal(t, 3*time.Second, linear.NextDelay(5))

	constant := &ConstantBackoff{Delay: 2 * time.Second}
	assert.Equal(t, 2*time.Second, constant.NextDelay(1))
	assert.Equal(t, 2*time.Second, constant.NextDelay(9))
}

func TestNewBackoff(t *testing.T) {
	b, err := NewBackoff("constant", time.Second, 0, 0, 0)
	require.NoError(t, err)
	assert.IsType(t, &ConstantBackoff{}, b)

	b, err = NewBackoff("linear", time.Second, 5*time.Second, 0, 0)
	require.NoError(t, err)
	assert.IsType(t, &LinearBackoff{}, b)

	b, err = NewBackoff("", time.Second, 5*time.Second, 2, 0)
	require.NoError(t, err)
	assert.IsType(t, &ExponentialBackoff{}, b)

	_, err = NewBackoff("fibonacci", time.Second, 0, 0, 0)
	assert.Error(t, err)
}

func testConfig(maxAttempts int, retryIf func(error) bool) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retryIf,
		Logger:      logger.NewTestLogger(),
	}
}

func TestRetryWithSuccess(t *testing.T) {
	var seen []int
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, testConfig(5, Always))

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	retries := 0
	cfg := testConfig(3, Always)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) { retries++ }

	last := errors.New("persistent error")
	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return last
	}, cfg)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, retries)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	invalid := errs.New(errs.ErrorTypeInvalidAction, "bad request")

	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return invalid
	}, testConfig(5, DefaultRetryIf))

	assert.Equal(t, invalid, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	attempts := 0
	cause := errors.New("fatal")

	err := Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return Permanent(cause)
	}, testConfig(5, Always))

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig(0, Always)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(ctx, func(ctx context.Context, attempt int) error {
		return errs.New(errs.ErrorTypeTimeout, "slow")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeNavigation, "goto")))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeProfileCardInvalid, "card")))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.True(t, DefaultRetryIf(errs.Wrap(errs.ErrorTypeTimeout, context.DeadlineExceeded, "wait")))
}

func TestDoWithResult(t *testing.T) {
	got, err := DoWithResult(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("again")
		}
		return "ok", nil
	}, testConfig(3, Always))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
