package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/fairplay/utils/pkg/retry"
)

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestFairplay_Retry_Do(t *testing.T) {
	t.Parallel()

	t.Run("returns on first success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := retry.Do(context.Background(), fastConfig(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := retry.Do(context.Background(), fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("does not retry terminal failures", func(t *testing.T) {
		t.Parallel()

		terminal := errors.New("invalid credentials")
		calls := 0
		err := retry.Do(context.Background(), fastConfig(), func() error {
			calls++
			return terminal
		})
		require.ErrorIs(t, err, terminal)
		require.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := retry.Do(context.Background(), fastConfig(), func() error {
			calls++
			return errors.New("connection reset")
		})
		require.Error(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		err := retry.Do(ctx, fastConfig(), func() error {
			cancel()
			return errors.New("connection refused")
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFairplay_Retry_IsRetryable(t *testing.T) {
	t.Parallel()

	require.False(t, retry.IsRetryable(nil))
	require.False(t, retry.IsRetryable(context.Canceled))
	require.False(t, retry.IsRetryable(errors.New("syntax error")))
	require.True(t, retry.IsRetryable(errors.New("dial tcp: connection refused")))
	require.True(t, retry.IsRetryable(errors.New("read: connection reset by peer")))
	require.True(t, retry.IsRetryable(errors.New("i/o timeout")))
}
