package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"fbharvest/pkg/config"
	errs "fbharvest/pkg/errors"
	"fbharvest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestExponentialBackoffJitterStaysWithinBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MinDelay:     100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(3)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
		Op:          "test op",
	}
}

func TestDoRetriesTransientFaults(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeStale, "read feed", "node detached")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoSessionInvalidIsNotRetried(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errs.New(errs.ErrorTypeSessionInvalid, "open feed", "redirected to login")
	}, fastConfig(5))

	assert.Equal(t, 1, attempts)
	assert.True(t, errs.Is(err, errs.ErrorTypeSessionInvalid))
}

func TestDoExhaustion(t *testing.T) {
	attempts := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(func() error {
		attempts++
		return errs.New(errs.ErrorTypeTimeout, "wait feed", "no feed container")
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, []int{1, 2, 3, 4}, retried)
	assert.True(t, errs.Is(err, errs.ErrorTypeExhausted))

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "test op", typed.Op)
	assert.True(t, errors.Is(err, &errs.Error{Type: errs.ErrorTypeTimeout}), "cause is preserved")
}

func TestDoUntypedErrorsAreNotRetried(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errors.New("plain failure")
	}, fastConfig(5))

	assert.EqualError(t, err, "plain failure")
	assert.Equal(t, 1, attempts)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}
	cfg.Context = ctx

	done := make(chan error, 1)
	go func() {
		done <- Do(func() error {
			return errs.New(errs.ErrorTypeDriver, "scroll", "target crashed")
		}, cfg)
	}()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errs.Is(err, errs.ErrorTypeCancelled))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errs.New(errs.ErrorTypeNotFound, "feed", "selector missing")
		}
		return "https://www.facebook.com/groups/1/", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "https://www.facebook.com/groups/1/", got)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.DefaultConfig().Retry, logger.NewNopLogger())
	assert.Equal(t, 5, cfg.MaxAttempts)

	backoff, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 1*time.Second, backoff.NextDelay(1))
	assert.Equal(t, 30*time.Second, backoff.NextDelay(7))
}

func TestRetrierNamed(t *testing.T) {
	r := NewRetrier(fastConfig(2)).Named("navigate")
	err := r.Do(func() error {
		return errs.New(errs.ErrorTypeClickIntercepted, "", "overlay in the way")
	})

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeExhausted, typed.Type)
	assert.Equal(t, "navigate", typed.Op)
	assert.Equal(t, "navigate", r.Config().Op)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
